package server

import "fmt"

// displayServerInfo shows server configuration information
func (s *Server) displayServerInfo() {
	s.displayEndpoints()
	s.displayAuthInfo()
	s.displayRequestLimitInfo()
	s.displayRateLimitInfo()
}

// displayEndpoints shows available API endpoints
func (s *Server) displayEndpoints() {
	fmt.Println("Available endpoints:")
	fmt.Println("  GET  /health                          - Health check")
	fmt.Println("  GET  /stats                           - Server statistics")
	fmt.Println("  POST /api/proxy/generate_resume       - Relay resume generation")
	fmt.Println("  GET  /api/proxy/get_job_roles         - Relay job roles")
	fmt.Println("  POST /api/proxy/edit_resume           - Relay resume edit")
	fmt.Println("  GET  /api/job-roles                   - Cached job roles with fallback")
	fmt.Println("  *    /api/wizard/sessions[/{id}/...]  - Resume wizard")
	fmt.Println("  *    /api/auth/...                    - Sign in, sign up, OAuth")
}

// displayAuthInfo shows authentication configuration
func (s *Server) displayAuthInfo() {
	switch {
	case s.AuthEnabled:
		fmt.Println("User authentication: ENABLED (session token required on wizard and proxy routes)")
	case len(s.APIKeys) > 0:
		fmt.Printf("API authentication: ENABLED (%d keys configured)\n", len(s.APIKeys))
	default:
		fmt.Println("Authentication: DISABLED")
		fmt.Println("WARNING: API endpoints are publicly accessible!")
	}
}

// displayRequestLimitInfo shows request size limit configuration
func (s *Server) displayRequestLimitInfo() {
	if s.MaxRequestSize > 0 {
		fmt.Printf("Request size limit: %d bytes (%.1f MB), uploads up to %.1f MB\n",
			s.MaxRequestSize, float64(s.MaxRequestSize)/(1024*1024), float64(s.MaxUploadSize)/(1024*1024))
	} else {
		fmt.Println("Request size limit: DISABLED")
	}
}

// displayRateLimitInfo shows rate limiting configuration
func (s *Server) displayRateLimitInfo() {
	if s.RateLimit != nil && s.RateLimit.Enabled {
		fmt.Printf("Rate limiting: ENABLED (%d requests/min, burst: %d)\n",
			s.RateLimit.RequestsPerMin, s.RateLimit.BurstCapacity)
		if s.RateLimit.ByAPIKey {
			fmt.Println("  - Per API key rate limiting enabled")
		}
		if s.RateLimit.ByIP {
			fmt.Println("  - Per IP address rate limiting enabled")
		}
	} else {
		fmt.Println("Rate limiting: DISABLED")
	}
}
