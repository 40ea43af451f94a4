package utils

import "testing"

func TestCalculateBMI(t *testing.T) {
	tests := []struct {
		height, weight float64
		want           float64
		wantErr        bool
	}{
		{160, 64, 25.0, false},
		{170, 55, 19.0, false},
		{0, 60, 0, true},
		{300, 60, 0, true},
	}
	for _, tt := range tests {
		got, err := CalculateBMI(tt.height, tt.weight)
		if (err != nil) != tt.wantErr {
			t.Errorf("CalculateBMI(%v, %v) error = %v, wantErr %v", tt.height, tt.weight, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("CalculateBMI(%v, %v) = %v, want %v", tt.height, tt.weight, got, tt.want)
		}
	}
}

func TestBMICategory(t *testing.T) {
	tests := map[float64]string{17: "Underweight", 22: "Normal weight", 27.5: "Overweight", 31: "Obese"}
	for bmi, want := range tests {
		if got := BMICategory(bmi); got != want {
			t.Errorf("BMICategory(%v) = %q, want %q", bmi, got, want)
		}
	}
}
