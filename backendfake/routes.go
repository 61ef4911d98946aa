package backendfake

// Routes served under APIPrefix
const (
	RouteLogin          = APIPrefix + "/user/login"
	RouteRegister       = APIPrefix + "/user/register"
	RouteForgotPassword = APIPrefix + "/user/forgot-password"
	RouteResetPassword  = APIPrefix + "/user/reset-password"
	RouteRefreshToken   = APIPrefix + "/user/refresh-token"
	RouteFetchMe        = APIPrefix + "/user/fetch/me"
	RouteSaveBusiness   = APIPrefix + "/saved-business/new"
	RouteRemoveBusiness = APIPrefix + "/saved-business/delete/business/{id}"
)

func (s *Server) initRoutes() {
	// Public
	s.RegisterRouteFunc("POST "+RouteLogin, ChainMiddleware(s.LoginHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteRegister, ChainMiddleware(s.RegisterHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteForgotPassword, ChainMiddleware(s.ForgotPasswordHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteResetPassword, ChainMiddleware(s.ResetPasswordHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteRefreshToken, ChainMiddleware(s.RefreshTokenHandler(), s.APIMiddleware()...))

	// Require an access token
	s.RegisterRouteFunc("GET "+RouteFetchMe, ChainMiddleware(s.FetchMeHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteFunc("POST "+RouteSaveBusiness, ChainMiddleware(s.SaveBusinessHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteFunc("DELETE "+RouteRemoveBusiness, ChainMiddleware(s.RemoveBusinessHandler(), s.APIMiddleware(s.RequireAuth())...))
}
