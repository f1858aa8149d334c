package domain

// Control is a catalog-defined compliance requirement, e.g. ISO 27001 "A.7".
type Control struct {
	ID              string   `yaml:"id" json:"id"`
	Title           string   `yaml:"title" json:"title"`
	Description     string   `yaml:"description" json:"description"`
	KeyRequirements []string `yaml:"key_requirements,omitempty" json:"key_requirements,omitempty"`
}

// ControlMatch is the result of scanning a question for a control id.
type ControlMatch struct {
	Control Control
	Found   bool
}

func NoControl() ControlMatch {
	return ControlMatch{}
}

func MatchedControl(c Control) ControlMatch {
	return ControlMatch{Control: c, Found: true}
}
