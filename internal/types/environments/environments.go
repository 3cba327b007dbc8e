package environments

type Environment string

const (
	Production  Environment = "production"
	Development Environment = "development"
	Staging     Environment = "staging"
	Test        Environment = "test"
)

// Parse falls back to Development for empty or unknown values.
func Parse(s string) Environment {
	switch env := Environment(s); env {
	case Production, Development, Staging, Test:
		return env
	default:
		return Development
	}
}

func (e Environment) IsProduction() bool {
	return e == Production
}
