// Package server implements a passive-mode FTP server.
//
// # Overview
//
// Each client gets one control connection served by its own goroutine.
// Commands are read one line at a time, looked up in a static verb table
// and answered with three-digit replies. Directory listings and file
// contents travel over a separate data connection that the client opens
// to a listener announced by PASV or EPSV; each listener carries exactly
// one transfer.
//
// Supported commands:
//   - Access: USER, PASS, QUIT
//   - Navigation: PWD, XPWD, CWD, XCWD, CDUP, XCUP
//   - Files: MKD, XMKD, DELE, LIST, NLST, RETR, STOR
//   - Data channel: PASV, EPSV
//   - Information: SYST, FEAT, HELP, NOOP, TYPE (A and I)
//   - Extensions: ZIP (archive a file or directory), UNZIP (extract an
//     archive into the working directory)
//
// Every command except USER, PASS and QUIT needs a successful login.
// Unknown verbs get 502 whatever the login state.
//
// # Getting Started
//
// The FSDriver serves a local directory to the users of a Credentials
// table:
//
//	table := credentials.New(map[string]string{"alice": "secret"})
//	driver, err := server.NewFSDriver("/srv/ftp", server.WithCredentials(table))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	s, err := server.NewServer(":2121", server.WithDriver(driver))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := s.ListenAndServe(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Sandbox
//
// Paths are resolved against a virtual working directory in which "/" is
// the served root. A path whose ".." components climb above "/" is
// rejected with 550 before the filesystem is touched, and all access goes
// through an os.Root, so symbolic links cannot leave the tree either.
//
// # Custom Drivers
//
// Implement Driver and ClientContext to serve something other than a local
// directory. ClientContext errors should wrap fs.ErrNotExist,
// fs.ErrPermission, fs.ErrExist or ErrOutsideRoot so the server can choose
// the reply.
//
// # Limits
//
// WithMaxConnections caps concurrent sessions; extra clients get 421 and
// are disconnected. WithIdleTimeout closes quiet control connections and
// WithBandwidthLimit throttles each RETR and STOR to a byte rate.
//
// # Logging and Metrics
//
// The server logs through log/slog with snake_case event names
// (session_started, authentication_failed, transfer_complete, ...).
// Commands, transfers, connections and logins can also be reported to a
// MetricsCollector set with WithMetricsCollector.
package server
