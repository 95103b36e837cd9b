package cli

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/anishxyz/integrations/core"
	integrationsquery "github.com/anishxyz/integrations/query"
	"github.com/go-chi/chi/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve credential operations and metrics over HTTP",
	Long: `Serve credential operations and Prometheus metrics as a JSON API.

  GET  /healthz                       liveness
  GET  /metrics                       manager metrics
  GET  /providers                     registered providers
  GET  /sessions/{subject}            resolved settings (?provider=github,slack)
  POST /oauth/{provider}/exchange     trade a code for a token and store it

Secrets in responses are always redacted.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var serveAddr string

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Listen address")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	rt, err := openRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	server := &http.Server{
		Addr:              serveAddr,
		Handler:           newRouter(rt),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	cmd.Printf("listening on %s\n", serveAddr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-cmd.Context().Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

type apiHandlers struct {
	rt *runtime
}

func newRouter(rt *runtime) http.Handler {
	h := &apiHandlers{rt: rt}
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", rt.metrics.Handler())
	r.Get("/providers", h.providers)
	r.Get("/sessions/{subject}", h.session)
	r.Post("/oauth/{provider}/exchange", h.exchange)
	return r
}

func (h *apiHandlers) providers(w http.ResponseWriter, r *http.Request) {
	names, err := h.rt.facade.Queries().ListProviders.Query(r.Context(), integrationsquery.ListProvidersMessage{})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeBody(w, http.StatusOK, names)
}

func (h *apiHandlers) session(w http.ResponseWriter, r *http.Request) {
	subject, err := parseSubject(chi.URLParam(r, "subject"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	msg := integrationsquery.SessionMessage{Subject: subject}
	if raw := strings.TrimSpace(r.URL.Query().Get("provider")); raw != "" {
		msg.Providers = strings.Split(raw, ",")
	}
	container, err := h.rt.facade.Queries().Session.Query(r.Context(), msg)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	out := make(map[string]any, container.Len())
	for key, settings := range container.All() {
		view, err := settingsView(settings, false)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		out[string(key)] = view
	}
	writeBody(w, http.StatusOK, out)
}

type exchangeBody struct {
	Subject               string `json:"subject"`
	Code                  string `json:"code"`
	AuthorizationResponse string `json:"authorization_response"`
	RedirectURI           string `json:"redirect_uri"`
}

func (h *apiHandlers) exchange(w http.ResponseWriter, r *http.Request) {
	var body exchangeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	subject, err := parseSubject(body.Subject)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	token, err := h.rt.manager.Exchange(r.Context(), chi.URLParam(r, "provider"), core.ExchangeRequest{
		Subject:               subject,
		Code:                  body.Code,
		AuthorizationResponse: body.AuthorizationResponse,
		RedirectURI:           body.RedirectURI,
	})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeBody(w, http.StatusOK, tokenView(token, false))
}

// statusFor uses the status carried by the manager's error envelope.
func statusFor(err error) int {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich.Code > 0 {
		return rich.Code
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeBody(w, status, map[string]string{"error": err.Error()})
}

func writeBody(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
