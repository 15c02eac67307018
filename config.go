package authflow

// RoutesConfig is the default Config implementation
type RoutesConfig struct {
	Home        string `json:"home" yaml:"home"`
	Entry       string `json:"entry" yaml:"entry"`
	Login       string `json:"login" yaml:"login"`
	Register    string `json:"register" yaml:"register"`
	VerifyEmail string `json:"verify_email" yaml:"verify_email"`
}

var _ Config = RoutesConfig{}

// DefaultRoutes returns the routes used by the web app
func DefaultRoutes() RoutesConfig {
	return RoutesConfig{
		Home:        "/home",
		Entry:       "/onboarding",
		Login:       "/login",
		Register:    "/register",
		VerifyEmail: "/verify-email",
	}
}

func (c RoutesConfig) GetHomeRoute() string {
	return orDefault(c.Home, "/home")
}

func (c RoutesConfig) GetEntryRoute() string {
	return orDefault(c.Entry, "/onboarding")
}

func (c RoutesConfig) GetLoginRoute() string {
	return orDefault(c.Login, "/login")
}

func (c RoutesConfig) GetRegisterRoute() string {
	return orDefault(c.Register, "/register")
}

func (c RoutesConfig) GetVerifyEmailRoute() string {
	return orDefault(c.VerifyEmail, "/verify-email")
}

func orDefault(val, def string) string {
	if val == "" {
		return def
	}
	return val
}
