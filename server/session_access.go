package server

func (s *session) handleUSER(user string) {
	if user == "" {
		s.reply(501, "Syntax error in parameters or arguments.")
		return
	}
	if s.authenticated {
		s.logout()
	}
	s.user = user
	s.reply(331, "User name okay, need password.")
}

func (s *session) handlePASS(pass string) {
	if s.authenticated {
		s.reply(230, "Already logged in.")
		return
	}
	if s.user == "" {
		s.reply(530, "Login with USER first.")
		return
	}

	ctx, err := s.server.driver.Authenticate(s.user, pass)
	if err != nil {
		// Security audit: failed authentication
		s.logger().Warn("authentication_failed",
			"session_id", s.sessionID,
			"remote_ip", s.remoteIP,
			"user", s.user,
			"reason", err.Error(),
		)
		if s.server.metricsCollector != nil {
			s.server.metricsCollector.RecordAuthentication(false, s.user)
		}
		s.reply(530, "Login incorrect.")
		return
	}

	s.fs = ctx
	s.authenticated = true
	// Security audit: successful authentication
	s.logger().Info("authentication_success",
		"session_id", s.sessionID,
		"remote_ip", s.remoteIP,
		"user", s.user,
	)
	if s.server.metricsCollector != nil {
		s.server.metricsCollector.RecordAuthentication(true, s.user)
	}
	s.reply(230, "User logged in, proceed.")
}

// logout drops the login so a new USER/PASS pair can be checked. The
// filesystem context and any pending data channel are released.
func (s *session) logout() {
	if s.fs != nil {
		if err := s.fs.Close(); err != nil {
			s.debug("client_context_close", "error", err)
		}
		s.fs = nil
	}
	s.releaseDataChannel()
	s.authenticated = false
	s.transferType = "I"
}
