package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"atelier/internal/app"
	"atelier/internal/auction"
	"atelier/internal/config"
	"atelier/internal/db"
	"atelier/internal/lifecycle"
	"atelier/internal/logging"
	"atelier/internal/migrate"
	"atelier/internal/notify"
	"atelier/internal/repo"
	"atelier/internal/review"
	"atelier/internal/server"
	"atelier/internal/status"
	"atelier/internal/storage"
)

var rootCmd = &cobra.Command{
	Use:   "atl",
	Short: "Atelier CLI",
	Long: `Atelier runs a peer review marketplace for game recordings.
An uploader posts a recording with bounty offers to chosen reviewers; the
offers form an auction pool. The first reviewer to accept wins the job at
their offered bounty. Coins escrowed at creation settle when the review
video is delivered: the bounty goes to the reviewer, any surplus returns
to the uploader. Cancel releases escrow; delete only hides settled work.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("ATELIER")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("user-id", "local-user", "acting user identifier")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("user-id", rootCmd.PersistentFlags().Lookup("user-id"))
}

func registerCommands() {
	rootCmd.AddCommand(atelierCmd())
	rootCmd.AddCommand(reviewCmd())
	rootCmd.AddCommand(ledgerCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(serveCmd())
}

func atelierCmd() *cobra.Command {
	at := &cobra.Command{
		Use:   "atelier",
		Short: "Manage ateliers",
		Long: `An atelier is one recording under review. It moves
created -> in_auction -> assigned -> in_progress -> complete; cancel and
the error statuses release the escrowed coins.`,
	}
	at.AddCommand(atelierCreateCmd())
	at.AddCommand(atelierListCmd())
	at.AddCommand(atelierShowCmd())
	at.AddCommand(atelierPoolCmd())
	at.AddCommand(atelierAcceptCmd())
	at.AddCommand(atelierDeclineCmd())
	at.AddCommand(atelierCancelCmd())
	at.AddCommand(atelierDeleteCmd())
	at.AddCommand(atelierFailCmd())
	return at
}

func atelierCreateCmd() *cobra.Command {
	var gameID, title, description, mediaType, file string
	var tags, offerSpecs []string
	var private bool
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an atelier and open its auction",
		RunE: func(cmd *cobra.Command, args []string) error {
			offers, err := parseOffers(offerSpecs)
			if err != nil {
				return err
			}
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()
			return withEngine(cmd.Context(), func(ctx context.Context, e lifecycle.Engine, _ review.Intake) error {
				a, err := e.Create(ctx, lifecycle.CreateOptions{
					UploaderID:  viper.GetString("user-id"),
					GameID:      gameID,
					Title:       title,
					Description: description,
					Tags:        tags,
					IsPrivate:   private,
					MediaType:   mediaType,
					Original:    f,
					Offers:      offers,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&gameID, "game", "", "game id")
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringArrayVar(&tags, "tag", []string{}, "tag (repeatable)")
	cmd.Flags().BoolVar(&private, "private", false, "hide from public listings")
	cmd.Flags().StringVar(&mediaType, "media-type", "video/mp4", "recording media type")
	cmd.Flags().StringVar(&file, "file", "", "path to the recording")
	cmd.Flags().StringArrayVar(&offerSpecs, "offer", []string{}, "bounty offer as reviewer=amount (repeatable)")
	_ = cmd.MarkFlagRequired("game")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("offer")
	return cmd
}

func atelierListCmd() *cobra.Command {
	var f repo.AtelierFilters
	var statusName string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List ateliers",
		RunE: func(cmd *cobra.Command, args []string) error {
			if statusName != "" {
				st, err := parseStatusArg(statusName)
				if err != nil {
					return err
				}
				f.Status = &st
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e lifecycle.Engine, _ review.Intake) error {
				items, err := e.List(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Status", "Uploader", "Reviewer", "Max Bounty"})
				for _, a := range items {
					reviewer := ""
					if a.ReviewerID != nil {
						reviewer = *a.ReviewerID
					}
					tw.AppendRow(table.Row{a.ID, a.Title, a.StatusLabel, a.UploaderID, reviewer, a.MaxBounty})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.UploaderID, "uploader", "", "uploader filter")
	cmd.Flags().StringVar(&f.ReviewerID, "reviewer", "", "reviewer filter")
	cmd.Flags().StringVar(&f.GameID, "game", "", "game filter")
	cmd.Flags().StringVar(&statusName, "status", "", "status filter (name or code)")
	cmd.Flags().BoolVar(&f.IncludeDeleted, "include-deleted", false, "include soft-deleted ateliers")
	cmd.Flags().IntVar(&f.Limit, "limit", 50, "max results")
	return cmd
}

func atelierShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show an atelier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e lifecycle.Engine, _ review.Intake) error {
				a, err := e.Get(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	return cmd
}

func atelierPoolCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pool <id>",
		Short: "List the auction pool of an atelier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e lifecycle.Engine, _ review.Intake) error {
				cands, err := e.Candidates(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(cands)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Reviewer", "Bounty", "Offered At"})
				for _, c := range cands {
					tw.AppendRow(table.Row{c.ReviewerID, c.Bounty, c.OfferedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func atelierAcceptCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accept <id>",
		Short: "Accept a review offer as the acting user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e lifecycle.Engine, _ review.Intake) error {
				a, err := e.Accept(ctx, args[0], viper.GetString("user-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	return cmd
}

func atelierDeclineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decline <id>",
		Short: "Decline a review offer as the acting user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e lifecycle.Engine, _ review.Intake) error {
				a, err := e.Decline(ctx, args[0], viper.GetString("user-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	return cmd
}

func atelierCancelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel an atelier and release its escrow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e lifecycle.Engine, _ review.Intake) error {
				a, err := e.Cancel(ctx, args[0], viper.GetString("user-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	return cmd
}

func atelierDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Hide a settled atelier from listings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e lifecycle.Engine, _ review.Intake) error {
				a, err := e.Delete(ctx, args[0], viper.GetString("user-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	return cmd
}

func atelierFailCmd() *cobra.Command {
	var reason string
	var artifact bool
	cmd := &cobra.Command{
		Use:   "fail <id>",
		Short: "Mark an atelier failed (operator escape hatch)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e lifecycle.Engine, _ review.Intake) error {
				userID := viper.GetString("user-id")
				var err error
				if artifact {
					err = e.MarkArtifactFailed(ctx, args[0], userID, reason)
				} else {
					err = e.MarkError(ctx, args[0], userID, reason)
				}
				if err != nil {
					return err
				}
				a, err := e.Get(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "failure reason")
	cmd.Flags().BoolVar(&artifact, "artifact", false, "media/mux failure instead of unknown error")
	return cmd
}

func reviewCmd() *cobra.Command {
	rv := &cobra.Command{
		Use:   "review",
		Short: "Deliver and score reviews",
	}
	rv.AddCommand(reviewStartCmd())
	rv.AddCommand(reviewSubmitCmd())
	rv.AddCommand(reviewScoreCmd())
	return rv
}

func reviewStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start <id>",
		Short: "Start working on an assigned review",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, _ lifecycle.Engine, in review.Intake) error {
				a, err := in.Start(ctx, args[0], viper.GetString("user-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	return cmd
}

func reviewSubmitCmd() *cobra.Command {
	var file, mediaType string
	cmd := &cobra.Command{
		Use:   "submit <id>",
		Short: "Deliver the review video and settle escrow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()
			return withEngine(cmd.Context(), func(ctx context.Context, _ lifecycle.Engine, in review.Intake) error {
				a, err := in.Submit(ctx, review.SubmitOptions{
					AtelierID:  args[0],
					ReviewerID: viper.GetString("user-id"),
					MediaType:  mediaType,
					Review:     f,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "path to the review video")
	cmd.Flags().StringVar(&mediaType, "media-type", "video/mp4", "review media type")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func reviewScoreCmd() *cobra.Command {
	var score float64
	cmd := &cobra.Command{
		Use:   "score <id>",
		Short: "Score a delivered review as the uploader",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, _ lifecycle.Engine, in review.Intake) error {
				a, err := in.Score(ctx, args[0], viper.GetString("user-id"), score)
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().Float64Var(&score, "score", 0, "score value")
	_ = cmd.MarkFlagRequired("score")
	return cmd
}

func ledgerCmd() *cobra.Command {
	lg := &cobra.Command{
		Use:   "ledger",
		Short: "Coin balances and movements",
		Long: `Coins live in three buckets per user: free (spendable), frozen
(escrowed for open ateliers) and redeemable (earned from reviews).`,
	}
	lg.AddCommand(ledgerBalanceCmd())
	lg.AddCommand(ledgerDepositCmd())
	lg.AddCommand(ledgerRedeemCmd())
	return lg
}

func ledgerBalanceCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Show a coin balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				userID = viper.GetString("user-id")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e lifecycle.Engine, _ review.Intake) error {
				acct, err := e.Ledger.Balance(ctx, userID)
				if err != nil {
					return err
				}
				return printJSONOrTable(acct)
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id (defaults to acting user)")
	return cmd
}

func ledgerDepositCmd() *cobra.Command {
	var amount int64
	cmd := &cobra.Command{
		Use:   "deposit",
		Short: "Deposit coins into the acting user's free balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e lifecycle.Engine, _ review.Intake) error {
				acct, err := e.Ledger.Deposit(ctx, viper.GetString("user-id"), amount)
				if err != nil {
					return err
				}
				return printJSONOrTable(acct)
			})
		},
	}
	cmd.Flags().Int64Var(&amount, "amount", 0, "amount in minor units")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func ledgerRedeemCmd() *cobra.Command {
	var amount int64
	cmd := &cobra.Command{
		Use:   "redeem",
		Short: "Redeem earned coins",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e lifecycle.Engine, _ review.Intake) error {
				acct, err := e.Ledger.Redeem(ctx, viper.GetString("user-id"), amount)
				if err != nil {
					return err
				}
				return printJSONOrTable(acct)
			})
		},
	}
	cmd.Flags().Int64Var(&amount, "amount", 0, "amount in minor units")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Marketplace overview",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e lifecycle.Engine, _ review.Intake) error {
				counts, err := e.Repo.CountAteliersByStatus(ctx)
				if err != nil {
					return err
				}
				schema, err := migrate.Version(e.DB)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{
						"schema_version": schema,
						"ateliers":       counts,
					})
				}
				fmt.Printf("Schema version: %d\n", schema)
				fmt.Println("Ateliers:")
				for label, c := range counts {
					fmt.Printf("  %s: %d\n", label, c)
				}
				return nil
			})
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	lc := &cobra.Command{
		Use:   "log",
		Short: "Lifecycle history log",
	}
	lc.AddCommand(logTailCmd())
	return lc
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, atelierID, actorID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail lifecycle events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e lifecycle.Engine, _ review.Intake) error {
				entries, err := e.History(ctx, repo.HistoryFilters{
					AtelierID: atelierID,
					Type:      evtType,
					ActorID:   actorID,
					Limit:     n,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(entries)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&atelierID, "atelier", "", "atelier filter")
	cmd.Flags().StringVar(&actorID, "actor", "", "actor filter")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Marketplace configuration",
		Long:  "Config is stored in the DB; atelier.yml in the workspace, when present, overrides it on every run.",
	}
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configImportCmd())
	return cfg
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show resolved config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e lifecycle.Engine, _ review.Intake) error {
				return printJSONOrTable(e.Config)
			})
		},
	}
	return cmd
}

func configInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default atelier.yml to the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	return cmd
}

func configImportCmd() *cobra.Command {
	var filePath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import config YAML into the DB",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				cfg, err := app.ImportConfig(ctx, filePath, r)
				if err != nil {
					return err
				}
				return printJSONOrTable(cfg)
			})
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "", "path to YAML config")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			lock := flock.New(db.LockPath(workspace))
			locked, err := lock.TryLock()
			if err != nil {
				return err
			}
			if !locked {
				return fmt.Errorf("another atl serve holds %s", db.LockPath(workspace))
			}
			defer lock.Unlock()

			secret := os.Getenv("ATELIER_JWT_SECRET")
			if secret == "" {
				return fmt.Errorf("ATELIER_JWT_SECRET is required for bearer auth")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e lifecycle.Engine, in review.Intake) error {
				handler, err := server.New(server.Config{
					Engine:   e,
					Intake:   in,
					BasePath: basePath,
					Auth:     server.AuthConfig{JWTSecret: secret, Logger: e.Log},
				})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				fmt.Printf("Serving Atelier API on http://%s%s (OpenAPI at /openapi.json)\n", addr, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, lifecycle.Engine, review.Intake) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	r := repo.Repo{DB: conn}
	cfg, err := app.ResolveConfig(ctx, workspace, r)
	if err != nil {
		return err
	}
	log, err := logging.New(logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		return err
	}
	store, err := storage.NewLocal(db.ArtifactsPath(workspace))
	if err != nil {
		return err
	}
	var notifier notify.Notifier = notify.Noop{}
	if cfg.Notify.PushURL != "" {
		timeout := time.Duration(cfg.Notify.RequestTimeoutSecs) * time.Second
		notifier = notify.NewPush(cfg.Notify.PushURL, timeout, log)
	}
	e := lifecycle.New(conn, cfg, store, notifier, log)
	in := review.New(conn, cfg, store, notifier, log)
	return fn(ctx, e, in)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	conn, err := db.Open(db.Config{Workspace: viper.GetString("workspace")})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func parseOffers(specs []string) ([]auction.Offer, error) {
	offers := make([]auction.Offer, 0, len(specs))
	for _, spec := range specs {
		parts := strings.SplitN(spec, "=", 2)
		if len(parts) != 2 || parts[0] == "" {
			return nil, fmt.Errorf("invalid offer %q, want reviewer=amount", spec)
		}
		amount, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid offer amount in %q", spec)
		}
		offers = append(offers, auction.Offer{ReviewerID: parts[0], Bounty: amount})
	}
	return offers, nil
}

func parseStatusArg(in string) (status.Status, error) {
	if code, err := strconv.Atoi(in); err == nil {
		if !status.Known(code) {
			return 0, fmt.Errorf("unknown status code %d", code)
		}
		return status.Status(code), nil
	}
	for _, st := range []status.Status{
		status.Created, status.InAuction, status.Assigned, status.InProgress,
		status.Complete, status.Cancelled, status.Deleted,
		status.ErrorOnCreate, status.ErrorOnMux, status.ErrorOnAccept, status.ErrorUnknown,
	} {
		if st.Label() == strings.ToLower(strings.TrimSpace(in)) {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown status %q", in)
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
