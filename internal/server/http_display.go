package server

import "fmt"

// displayServerInfo shows server configuration information
func (s *Server) displayServerInfo() {
	s.displayEndpoints()
	s.displaySessionInfo()
	s.displayRequestLimitInfo()
	s.displayRateLimitInfo()
}

// displayEndpoints shows the routes served by setupRoutes
func (s *Server) displayEndpoints() {
	fmt.Println("Available endpoints:")
	fmt.Println("  GET  /                     - Wizard page (starts a session)")
	fmt.Println("  POST /wizard/next          - Next intake step")
	fmt.Println("  POST /wizard/back          - Previous intake step")
	fmt.Println("  POST /resume               - Submit resume details")
	fmt.Println("  POST /test/setup           - Open test setup")
	fmt.Println("  POST /test/generate        - Generate a skill test")
	fmt.Println("  POST /test/submit          - Evaluate answers")
	fmt.Println("  POST /test/retry           - Retry focusing on weaknesses")
	fmt.Println("  POST /jobs                 - Job recommendations")
	fmt.Println("  POST /navigate             - Go back to a section")
	fmt.Println("  POST /restart              - Start over")
	fmt.Println("  GET  /session/{id}/status  - Session status (JSON)")
	fmt.Println("  GET  /health               - Health check")
	fmt.Println("  GET  /stats                - Server statistics")
}

// displaySessionInfo shows where sessions live and the backend in use
func (s *Server) displaySessionInfo() {
	if s.AppConfig == nil {
		return
	}
	fmt.Printf("Session store: %s (ttl %s)\n", s.AppConfig.Session.Store, s.AppConfig.Session.TTL)
	fmt.Printf("Assessment backend: %s\n", s.AppConfig.Backend.BaseURL)
	if s.AppConfig.UI.TemplatesDir != "" {
		fmt.Printf("Template overrides: %s (watch: %t)\n", s.AppConfig.UI.TemplatesDir, s.AppConfig.UI.WatchTemplates)
	}
}

// displayRequestLimitInfo shows request size limit configuration
func (s *Server) displayRequestLimitInfo() {
	if s.MaxRequestSize > 0 {
		fmt.Printf("Request size limit: %d bytes (%.1f MB)\n", s.MaxRequestSize, float64(s.MaxRequestSize)/(1024*1024))
	} else {
		fmt.Println("Request size limit: DISABLED")
		fmt.Println("WARNING: No request size limits configured!")
	}
}

// displayRateLimitInfo shows rate limiting configuration
func (s *Server) displayRateLimitInfo() {
	if s.RateLimit != nil && s.RateLimit.Enabled {
		fmt.Printf("Rate limiting: ENABLED (%d form submissions/min per IP, burst: %d)\n",
			s.RateLimit.RequestsPerMin, s.RateLimit.BurstCapacity)
		if s.RateLimit.TrustProxy {
			fmt.Println("  - Client IP taken from X-Forwarded-For / X-Real-IP")
		}
	} else {
		fmt.Println("Rate limiting: DISABLED")
		fmt.Println("WARNING: No rate limiting configured!")
	}
}
