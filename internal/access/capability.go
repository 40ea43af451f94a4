package access

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Resource is a registered codename. Every mutating route declares one.
type Resource string

const (
	ResourceQuestion               Resource = "question"
	ResourcePatientResponse        Resource = "patientresponse"
	ResourcePatientDietQuestion    Resource = "patientdietquestion"
	ResourceMealPortion            Resource = "mealportion"
	ResourceDietPlan               Resource = "dietplan"
	ResourceDietPlanStatus         Resource = "dietplanstatus"
	ResourceExercise               Resource = "exercise"
	ResourceExerciseStatus         Resource = "exercisestatus"
	ResourceDoctorExerciseResponse Resource = "doctorexerciseresponse"
	ResourceLabReport              Resource = "labreport"
	ResourceHealthStatus           Resource = "healthstatus"
	ResourceProfile                Resource = "profile"
	ResourcePatient                Resource = "patient"
	ResourceDoctor                 Resource = "doctor"
)

var registry = []Resource{
	ResourceQuestion,
	ResourcePatientResponse,
	ResourcePatientDietQuestion,
	ResourceMealPortion,
	ResourceDietPlan,
	ResourceDietPlanStatus,
	ResourceExercise,
	ResourceExerciseStatus,
	ResourceDoctorExerciseResponse,
	ResourceLabReport,
	ResourceHealthStatus,
	ResourceProfile,
	ResourcePatient,
	ResourceDoctor,
}

func Resources() []Resource {
	out := make([]Resource, len(registry))
	copy(out, registry)
	return out
}

func (r Resource) Registered() bool {
	for _, known := range registry {
		if r == known {
			return true
		}
	}
	return false
}

// Verb is a mutation kind. Reads carry no verb.
type Verb int

const (
	VerbCreate Verb = iota + 1
	VerbUpdate
	VerbPartialUpdate
	VerbDelete
)

// PUT maps to "change" and PATCH to "update". The two are separate capabilities.
var verbPrefixes = map[Verb]string{
	VerbCreate:        "add",
	VerbUpdate:        "change",
	VerbPartialUpdate: "update",
	VerbDelete:        "delete",
}

var methodVerbs = map[string]Verb{
	http.MethodPost:   VerbCreate,
	http.MethodPut:    VerbUpdate,
	http.MethodPatch:  VerbPartialUpdate,
	http.MethodDelete: VerbDelete,
}

func (v Verb) Prefix() string { return verbPrefixes[v] }

// VerbForMethod reports the verb a method requires; ok is false for reads.
func VerbForMethod(method string) (Verb, bool) {
	v, ok := methodVerbs[strings.ToUpper(method)]
	return v, ok
}

type Capability struct {
	Verb     Verb
	Resource Resource
}

func (c Capability) String() string {
	return c.Verb.Prefix() + "_" + string(c.Resource)
}

// ParseCapability accepts only registered verb prefixes and resources.
func ParseCapability(s string) (Capability, error) {
	prefix, codename, ok := strings.Cut(s, "_")
	if !ok {
		return Capability{}, fmt.Errorf("malformed capability %q", s)
	}
	var verb Verb
	for v, p := range verbPrefixes {
		if p == prefix {
			verb = v
			break
		}
	}
	if verb == 0 {
		return Capability{}, fmt.Errorf("capability %q: unknown verb prefix %q", s, prefix)
	}
	res := Resource(codename)
	if !res.Registered() {
		return Capability{}, fmt.Errorf("capability %q: unregistered resource %q", s, codename)
	}
	return Capability{Verb: verb, Resource: res}, nil
}

// AllCapabilities enumerates every verb over every registered resource.
func AllCapabilities() []Capability {
	verbs := []Verb{VerbCreate, VerbUpdate, VerbPartialUpdate, VerbDelete}
	out := make([]Capability, 0, len(registry)*len(verbs))
	for _, r := range registry {
		for _, v := range verbs {
			out = append(out, Capability{Verb: v, Resource: r})
		}
	}
	return out
}

// ValidateRegistry checks group capability strings and route resources.
// It runs at startup so a typo fails the boot, not a request.
func ValidateRegistry(groups map[string][]string, routeResources []Resource) error {
	var problems []string
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, raw := range groups[name] {
			if _, err := ParseCapability(raw); err != nil {
				problems = append(problems, fmt.Sprintf("group %s: %v", name, err))
			}
		}
	}
	for _, r := range routeResources {
		if !r.Registered() {
			problems = append(problems, fmt.Sprintf("route resource %q is not registered", r))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("capability registry invalid: %s", strings.Join(problems, "; "))
	}
	return nil
}
