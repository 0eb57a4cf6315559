// ABOUTME: Sync subcommands for Google OAuth setup and source runs
// ABOUTME: Runs Gmail and Fathom through the orchestrator and imports Google Contacts
package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os/exec"
	"runtime"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/harperreed/outreach/models"
	"github.com/harperreed/outreach/sync"
)

const contactsService = "contacts"

// validServices lists what `sync all` accepts, in run order.
var validServices = []string{"gmail", "fathom", contactsService}

func newSyncCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Pull activity from Gmail, Fathom, and Google Contacts",
	}
	cmd.AddCommand(
		newSyncInitCmd(app),
		newSyncSourceCmd(app, "gmail", "Sync recent Gmail threads"),
		newSyncSourceCmd(app, "fathom", "Sync recorded Fathom calls"),
		newSyncContactsCmd(app),
		newSyncAllCmd(app),
		newSyncRunsCmd(app),
		newSyncStatusCmd(app),
	)
	return cmd
}

func newSyncInitCmd(app *App) *cobra.Command {
	var noBrowser bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Authorize Google access and store the token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := sync.NewOAuthConfig(app.cfg.GoogleClientID, app.cfg.GoogleClientSecret, app.cfg.GoogleRedirectURL)
			if cfg.ClientID == "" || cfg.ClientSecret == "" {
				return sync.ErrNoCredentials
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()

			token, err := authorize(ctx, cmd, cfg, !noBrowser)
			if err != nil {
				return err
			}
			path := sync.TokenPath()
			if err := sync.SaveToken(path, token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}
			fmt.Fprintf(out(cmd), "\n✓ Authenticated successfully\n  token saved to %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "Print the authorization URL without opening a browser")
	return cmd
}

// authorize runs the OAuth code flow against a local callback server bound
// to the configured redirect URL.
func authorize(ctx context.Context, cmd *cobra.Command, cfg *oauth2.Config, browser bool) (*oauth2.Token, error) {
	redirect, err := url.Parse(cfg.RedirectURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redirect URL: %w", err)
	}
	ln, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return nil, fmt.Errorf("failed to listen for OAuth callback: %w", err)
	}

	state := uuid.NewString()
	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc(redirect.Path, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			select {
			case errCh <- errors.New("no authorization code received"):
			default:
			}
			return
		}
		_, _ = fmt.Fprintln(w, "Authorization successful! You can close this window.")
		select {
		case codeCh <- code:
		default:
		}
	})

	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case errCh <- err:
			default:
			}
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	fmt.Fprintf(out(cmd), "Visit this URL to authorize access:\n%s\n", authURL)
	if browser {
		if err := openBrowser(authURL); err != nil {
			fmt.Fprintf(stderr(cmd), "could not open browser: %v\n", err)
		}
	}

	select {
	case code := <-codeCh:
		token, err := cfg.Exchange(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("failed to exchange code: %w", err)
		}
		return token, nil
	case err := <-errCh:
		return nil, err
	case <-ctx.Done():
		return nil, fmt.Errorf("timed out waiting for authorization: %w", ctx.Err())
	}
}

// openBrowser attempts to open URL in default browser
func openBrowser(target string) error {
	var name string
	var args []string

	switch runtime.GOOS {
	case "darwin":
		name = "open"
		args = []string{target}
	case "windows":
		name = "cmd"
		args = []string{"/c", "start", target}
	default:
		name = "xdg-open"
		args = []string{target}
	}
	return exec.Command(name, args...).Start()
}

func newSyncSourceCmd(app *App, source, short string) *cobra.Command {
	var apply bool
	var since string

	cmd := &cobra.Command{
		Use:   source,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := sync.RunOptions{Type: models.RunManual, Apply: apply}
			if since != "" {
				t, err := time.Parse(models.DateLayout, since)
				if err != nil {
					return fmt.Errorf("invalid --since date %q", since)
				}
				opts.Since = t
			}
			return app.runSource(cmd, source, opts)
		},
	}
	cmd.Flags().BoolVar(&apply, "apply", false, "Write confident matches to contacts (default: record for review only)")
	cmd.Flags().StringVar(&since, "since", "", "Fetch activity since this date (default: last sync)")
	return cmd
}

func (a *App) runSource(cmd *cobra.Command, source string, opts sync.RunOptions) error {
	ctx := cmd.Context()
	runner, err := a.syncRunner(ctx)
	if err != nil {
		return err
	}

	run, err := runner.RunSource(ctx, source, opts)
	if run != nil {
		printRun(cmd, run)
	}
	if err != nil {
		return fmt.Errorf("%s sync failed: %w", source, err)
	}
	if !opts.Apply && run.NeedsReview > 0 {
		fmt.Fprintln(out(cmd), "  review pending matches with: outreach review list")
	}
	return nil
}

func printRun(cmd *cobra.Command, run *models.SyncRun) {
	w := out(cmd)
	mark := "✓"
	if run.Status == models.RunFailed {
		mark = "✗"
	}
	fmt.Fprintf(w, "%s %s %s: %d processed, %d new, %d contacts created, %d need review, %d failed\n",
		mark, run.Source, run.Status, run.Processed, run.New, run.ContactsCreated, run.NeedsReview, run.Failed)
	for _, e := range run.Errors {
		fmt.Fprintf(w, "    ! %s\n", e)
	}
}

func newSyncContactsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   contactsService,
		Short: "Import Google Contacts as prospects",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.importContacts(cmd)
		},
	}
}

func (a *App) importContacts(cmd *cobra.Command) error {
	ctx := cmd.Context()
	client, err := a.googleClient(ctx)
	if err != nil {
		return err
	}
	svc, err := sync.NewPeopleClient(ctx, client)
	if err != nil {
		return err
	}

	started := time.Now()
	_ = a.store.UpdateSyncStatus(ctx, contactsService, models.SyncStatusSyncing, "")
	stats, err := sync.NewContactsImporter(a.store, a.logger).ImportContacts(ctx, svc)
	if err != nil {
		_ = a.store.UpdateSyncStatus(ctx, contactsService, models.SyncStatusError, err.Error())
		return fmt.Errorf("contacts import failed: %w", err)
	}
	if err := a.store.MarkSynced(ctx, contactsService, started); err != nil {
		a.logger.Warn("failed to record contacts sync", zap.Error(err))
	}

	fmt.Fprintf(out(cmd), "✓ contacts: %d fetched, %d created, %d merged, %d skipped, %d failed\n",
		stats.Fetched, stats.Created, stats.Merged, stats.Skipped, stats.Failed)
	return nil
}

func newSyncAllCmd(app *App) *cobra.Command {
	var services string
	var apply bool

	cmd := &cobra.Command{
		Use:   "all",
		Short: "Run several sources one after another",
		RunE: func(cmd *cobra.Command, _ []string) error {
			selected := parseServices(services)
			if len(selected) == 0 {
				return fmt.Errorf("no valid services in %q (valid: %s)", services, strings.Join(validServices, ", "))
			}

			var failed []string
			for _, service := range selected {
				var err error
				if service == contactsService {
					err = app.importContacts(cmd)
				} else {
					err = app.runSource(cmd, service, sync.RunOptions{Type: models.RunManual, Apply: apply})
				}
				if err != nil {
					app.logger.Error("sync failed", zap.String("service", service), zap.Error(err))
					failed = append(failed, service)
				}
			}
			if len(failed) > 0 {
				return fmt.Errorf("sync failed for: %s", strings.Join(failed, ", "))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&services, "services", "all", "Comma-separated services: gmail, fathom, contacts, or all")
	cmd.Flags().BoolVar(&apply, "apply", false, "Write confident matches to contacts")
	return cmd
}

// parseServices splits a comma-separated service list, dropping unknown
// names. "all" selects every service.
func parseServices(input string) []string {
	if strings.TrimSpace(input) == "all" {
		return append([]string{}, validServices...)
	}

	services := []string{}
	for _, part := range strings.Split(input, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		for _, valid := range validServices {
			if name == valid {
				services = append(services, name)
				break
			}
		}
	}
	return services
}

func newSyncRunsCmd(app *App) *cobra.Command {
	var source string
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent sync runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			runs, err := app.store.ListRuns(cmd.Context(), source, limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(out(cmd), "No sync runs yet")
				return nil
			}

			tw := tabwriter.NewWriter(out(cmd), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "STARTED\tSOURCE\tTYPE\tSTATUS\tPROCESSED\tNEW\tREVIEW\tFAILED")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
					formatTimeSince(r.StartedAt), r.Source, r.Type, r.Status, r.Processed, r.New, r.NeedsReview, r.Failed)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "Only runs for this source")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum results")
	return cmd
}

func newSyncStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show when each source last synced",
		RunE: func(cmd *cobra.Command, _ []string) error {
			states, err := app.store.GetAllSyncStates(cmd.Context())
			if err != nil {
				return err
			}
			if len(states) == 0 {
				fmt.Fprintln(out(cmd), "Nothing synced yet")
				return nil
			}
			for _, s := range states {
				last := "never"
				if s.LastSyncTime != nil {
					last = formatTimeSince(*s.LastSyncTime)
				}
				line := fmt.Sprintf("%-10s %-8s last synced %s", s.Service, s.Status, last)
				if s.ErrorMessage != "" {
					line += "  (" + s.ErrorMessage + ")"
				}
				fmt.Fprintln(out(cmd), line)
			}
			return nil
		},
	}
}

// formatTimeSince renders t relative to now in the coarsest whole unit.
func formatTimeSince(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return plural(int(d/time.Minute), "minute")
	case d < 24*time.Hour:
		return plural(int(d/time.Hour), "hour")
	default:
		return plural(int(d/(24*time.Hour)), "day")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}
