package sso

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"opscenter/internal/auth"
)

const callbackPage = `<html>
<head><title>Signed in</title></head>
<body style="font-family: sans-serif; text-align: center; padding: 50px;">
	<h1 style="color: #007AC3;">Signed in to WK Sales Ops</h1>
	<p>You can close this tab and return to the terminal.</p>
	<script>window.close();</script>
</body>
</html>`

// waitForCallback serves the redirect URI on ln until the identity provider
// redirects back with a code for expectedState.
func waitForCallback(ctx context.Context, ln net.Listener, path, expectedState string) (string, error) {
	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)
	fail := func(err error) {
		select {
		case errCh <- err:
		default:
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		if q.Get("state") != expectedState {
			http.Error(w, "Invalid state", http.StatusBadRequest)
			fail(fmt.Errorf("callback carried an unexpected state"))
			return
		}
		if errCode := q.Get("error"); errCode != "" {
			reason := q.Get("error_description")
			if reason == "" {
				reason = errCode
			}
			http.Error(w, "Sign-in failed: "+reason, http.StatusBadRequest)
			fail(&auth.RejectedError{Reason: reason})
			return
		}
		code := q.Get("code")
		if code == "" {
			http.Error(w, "No code received", http.StatusBadRequest)
			fail(fmt.Errorf("callback carried no authorization code"))
			return
		}

		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(callbackPage))
		select {
		case codeCh <- code:
		default:
		}
	})

	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	serveErr := make(chan error, 1)
	go func() {
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
		close(serveErr)
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		<-serveErr
	}()

	select {
	case code := <-codeCh:
		return code, nil
	case err := <-errCh:
		return "", err
	case err, ok := <-serveErr:
		if !ok {
			err = fmt.Errorf("callback server stopped")
		}
		return "", err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
