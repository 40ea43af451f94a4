package access

// DefaultGroups is the seeded capability matrix, one group per role.
// The superadmin group is generated from the registry.
func DefaultGroups() map[string][]string {
	groups := map[string][]string{
		string(RoleAdmin): fullControl(
			ResourceQuestion,
			ResourceMealPortion,
			ResourceExercise,
			ResourceDietPlan,
			ResourcePatient,
			ResourceDoctor,
			ResourceProfile,
		),
		string(RoleDoctor): {
			"add_dietplan",
			"change_dietplan",
			"add_exercise",
			"add_doctorexerciseresponse",
			"add_labreport",
			"add_healthstatus",
			"change_profile",
			"update_profile",
			"update_patient",
		},
		string(RolePatient): {
			"add_patientresponse",
			"add_patientdietquestion",
			"add_dietplanstatus",
			"add_exercisestatus",
			"add_labreport",
			"change_labreport",
			"delete_labreport",
			"add_healthstatus",
			"change_profile",
			"update_profile",
		},
	}

	all := AllCapabilities()
	super := make([]string, 0, len(all))
	for _, c := range all {
		super = append(super, c.String())
	}
	groups[string(RoleSuperAdmin)] = super
	return groups
}

func fullControl(resources ...Resource) []string {
	var out []string
	for _, r := range resources {
		for _, v := range []Verb{VerbCreate, VerbUpdate, VerbPartialUpdate, VerbDelete} {
			out = append(out, Capability{Verb: v, Resource: r}.String())
		}
	}
	return out
}

// ParseGroup converts stored capability strings, rejecting unknown ones.
func ParseGroup(name string, raw []string) (Group, error) {
	g := Group{Name: name}
	for _, s := range raw {
		c, err := ParseCapability(s)
		if err != nil {
			return Group{}, err
		}
		g.Capabilities = append(g.Capabilities, c)
	}
	return g, nil
}
