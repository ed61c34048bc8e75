package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"kingdom/internal/config"
	"kingdom/internal/db"
	"kingdom/internal/domain"
	"kingdom/internal/engine"
	"kingdom/internal/migrate"
	"kingdom/internal/repo"
	"kingdom/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "kd",
	Short: "Kingdom CLI",
	Long: `Kingdom runs the coup lifecycle for a persistent game world.
Core concepts:
- Actors hold gold, global reputation, attack/defense power, and a
  per-kingdom reputation earned by playing there.
- Kingdoms have at most one ruler. An unclaimed kingdom is claimed, a
  claimed one is taken by coup.
- A coup opens a voting window during which checked-in actors pick the
  attacker or defender side; when the window closes the battle resolves
  and rewards or executions follow.
- Event log: diary of every change, view with 'kd log tail'.`,
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
	viper.SetEnvPrefix("KINGDOM")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
}

func registerCommands() {
	rootCmd.AddCommand(actorCmd())
	rootCmd.AddCommand(kingdomCmd())
	rootCmd.AddCommand(coupCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func actorCmd() *cobra.Command {
	actor := &cobra.Command{
		Use:   "actor",
		Short: "Manage actors",
	}
	actor.AddCommand(actorCreateCmd())
	actor.AddCommand(actorListCmd())
	actor.AddCommand(actorShowCmd())
	actor.AddCommand(actorCheckinCmd())
	return actor
}

func actorCreateCmd() *cobra.Command {
	var opts engine.ActorCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Name == "" {
				return fmt.Errorf("--name required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.CreateActor(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "actor id (random UUID if omitted)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "display name")
	cmd.Flags().IntVar(&opts.Gold, "gold", 0, "starting gold")
	cmd.Flags().IntVar(&opts.Reputation, "reputation", 0, "starting global reputation")
	cmd.Flags().IntVar(&opts.AttackPower, "attack-power", 1, "attack power")
	cmd.Flags().IntVar(&opts.DefensePower, "defense-power", 1, "defense power")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func actorListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List actors",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListActors(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Gold", "Rep", "Atk", "Def", "Checked In"})
				for _, a := range items {
					checkedIn := ""
					if a.CheckedInKingdom != nil {
						checkedIn = *a.CheckedInKingdom
					}
					tw.AppendRow(table.Row{a.ID, a.Name, a.Gold, a.Reputation, a.AttackPower, a.DefensePower, checkedIn})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func actorShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show an actor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				a, err := r.GetActor(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	return cmd
}

func actorCheckinCmd() *cobra.Command {
	var kingdomID string
	cmd := &cobra.Command{
		Use:   "checkin",
		Short: "Check the actor into a kingdom",
		RunE: func(cmd *cobra.Command, args []string) error {
			if kingdomID == "" {
				return fmt.Errorf("--kingdom required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.CheckIn(ctx, viper.GetString("actor-id"), kingdomID)
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&kingdomID, "kingdom", "", "kingdom id")
	_ = cmd.MarkFlagRequired("kingdom")
	return cmd
}

func kingdomCmd() *cobra.Command {
	kingdom := &cobra.Command{
		Use:   "kingdom",
		Short: "Manage kingdoms",
	}
	kingdom.AddCommand(kingdomCreateCmd())
	kingdom.AddCommand(kingdomListCmd())
	kingdom.AddCommand(kingdomShowCmd())
	kingdom.AddCommand(kingdomClaimCmd())
	return kingdom
}

func kingdomCreateCmd() *cobra.Command {
	var opts engine.KingdomCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a kingdom",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Name == "" {
				return fmt.Errorf("--name required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				k, err := e.CreateKingdom(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(k)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "kingdom id (random UUID if omitted)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "kingdom name")
	cmd.Flags().StringVar(&opts.RulerID, "ruler", "", "initial ruler actor id")
	cmd.Flags().IntVar(&opts.TreasuryGold, "treasury", 0, "treasury gold")
	cmd.Flags().IntVar(&opts.FortificationLevel, "fortification", 0, "fortification level")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func kingdomListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List kingdoms",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListKingdoms(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Ruler", "Treasury", "Fortification"})
				for _, k := range items {
					ruler := "(unclaimed)"
					if k.RulerID != nil {
						ruler = *k.RulerID
					}
					tw.AppendRow(table.Row{k.ID, k.Name, ruler, k.TreasuryGold, k.FortificationLevel})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func kingdomShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a kingdom",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				k, err := r.GetKingdom(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(k)
			})
		},
	}
	return cmd
}

func kingdomClaimCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "claim <id>",
		Short: "Claim an unclaimed kingdom",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				k, err := e.ClaimKingdom(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(k)
			})
		},
	}
	return cmd
}

func coupCmd() *cobra.Command {
	coup := &cobra.Command{
		Use:   "coup",
		Short: "Manage coups",
		Long:  "A coup opens a voting window against a kingdom's ruler. Initiation costs gold and needs kingdom reputation; joining a side is free for checked-in actors; resolution settles the battle once the window closes.",
	}
	coup.AddCommand(coupInitiateCmd())
	coup.AddCommand(coupJoinCmd())
	coup.AddCommand(coupListCmd())
	coup.AddCommand(coupShowCmd())
	coup.AddCommand(coupResolveCmd())
	coup.AddCommand(coupSweepCmd())
	return coup
}

func coupInitiateCmd() *cobra.Command {
	var kingdomID string
	cmd := &cobra.Command{
		Use:   "initiate",
		Short: "Initiate a coup against a kingdom's ruler",
		RunE: func(cmd *cobra.Command, args []string) error {
			if kingdomID == "" {
				return fmt.Errorf("--kingdom required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.InitiateCoup(ctx, viper.GetString("actor-id"), kingdomID)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&kingdomID, "kingdom", "", "kingdom id")
	_ = cmd.MarkFlagRequired("kingdom")
	return cmd
}

func coupJoinCmd() *cobra.Command {
	var side string
	cmd := &cobra.Command{
		Use:   "join <coup-id>",
		Short: "Join a side of an open coup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.JoinCoup(ctx, args[0], viper.GetString("actor-id"), domain.CoupSide(side))
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&side, "side", "", "attackers or defenders")
	_ = cmd.MarkFlagRequired("side")
	return cmd
}

func coupListCmd() *cobra.Command {
	var kingdomID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List active coups",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListActiveCoups(ctx, kingdomID, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Kingdom", "Initiator", "Remaining", "Attackers", "Defenders", "Your Side"})
				for _, c := range items {
					remaining := (time.Duration(c.TimeRemainingSeconds) * time.Second).String()
					tw.AppendRow(table.Row{c.ID, c.KingdomID, c.InitiatorID, remaining, c.AttackerCount, c.DefenderCount, string(c.ViewerSide)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&kingdomID, "kingdom", "", "kingdom filter")
	return cmd
}

func coupShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <coup-id>",
		Short: "Show a coup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.GetCoup(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	return cmd
}

func coupResolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <coup-id>",
		Short: "Resolve a coup whose voting window has closed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.ResolveCoup(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	}
	return cmd
}

func coupSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Resolve every coup past its voting window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				results, err := e.SweepExpired(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(results)
				}
				if len(results) == 0 {
					fmt.Println("no expired coups")
					return nil
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Coup", "Kingdom", "Attacker Victory", "Error"})
				for _, r := range results {
					tw.AppendRow(table.Row{r.CoupID, r.KingdomID, r.AttackerVictory, r.Error})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect balance config",
		Long:  "Config is the rulebook: coup costs, the reputation floor, voting window, cooldown, and the reward and penalty tables. Loaded from kingdom.yml in the workspace, defaults otherwise.",
	}
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	cfg.AddCommand(configInitCmd())
	return cfg
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show loaded config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSONOrTable(cfg)
		},
	}
	return cmd
}

func configValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate workspace config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err == nil {
				err = cfg.Validate()
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
	return cmd
}

func configInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default kingdom.yml",
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

func apikeyCmd() *cobra.Command {
	key := &cobra.Command{
		Use:   "apikey",
		Short: "Manage API keys",
	}
	key.AddCommand(apikeyCreateCmd())
	return key
}

func apikeyCreateCmd() *cobra.Command {
	var actorID, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Mint an API key for an actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			if actorID == "" {
				actorID = viper.GetString("actor-id")
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if _, err := r.GetActor(ctx, actorID); err != nil {
					return err
				}
				raw := uuid.New().String()
				key := domain.APIKey{
					ID:        uuid.New().String(),
					ActorID:   actorID,
					Name:      name,
					KeyHash:   repo.HashAPIKey(raw),
					CreatedAt: time.Now().UTC().Format(time.RFC3339),
				}
				tx, err := r.DB.BeginTx(ctx, nil)
				if err != nil {
					return err
				}
				defer tx.Rollback()
				if err := r.InsertAPIKey(ctx, tx, key); err != nil {
					return err
				}
				if err := tx.Commit(); err != nil {
					return err
				}
				return printJSONOrTable(map[string]string{
					"id":       key.ID,
					"actor_id": key.ActorID,
					"name":     key.Name,
					"key":      raw,
				})
			})
		},
	}
	cmd.Flags().StringVar(&actorID, "actor", "", "actor id (defaults to --actor-id)")
	cmd.Flags().StringVar(&name, "name", "", "key name")
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, kingdomID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				events, err := r.LatestEvents(ctx, n, 0, kingdomID, evtType)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&kingdomID, "kingdom", "", "kingdom filter")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var sweepInterval time.Duration
	var devLogin bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server and the resolution sweep",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfg, err := config.Load(workspace)
			if err != nil {
				return err
			}
			e := engine.New(conn, cfg)
			authCfg := server.AuthConfig{
				JWTSecret:      os.Getenv("KINGDOM_JWT_SECRET"),
				EnableDevLogin: devLogin,
			}
			if authCfg.JWTSecret == "" {
				return fmt.Errorf("KINGDOM_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}

			// The engine owns no timers; the serve command drives the sweep.
			go func() {
				ticker := time.NewTicker(sweepInterval)
				defer ticker.Stop()
				for {
					select {
					case <-cmd.Context().Done():
						return
					case <-ticker.C:
						results, err := e.SweepExpired(cmd.Context())
						if err != nil {
							fmt.Println("sweep error:", err)
							continue
						}
						for _, r := range results {
							if r.Error != "" {
								fmt.Printf("sweep: coup %s failed: %s\n", r.CoupID, r.Error)
							} else {
								fmt.Printf("sweep: resolved coup %s (attacker_victory=%v)\n", r.CoupID, r.AttackerVictory)
							}
						}
					}
				}
			}()

			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Kingdom API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	cmd.Flags().DurationVar(&sweepInterval, "sweep-interval", time.Minute, "resolution sweep interval")
	cmd.Flags().BoolVar(&devLogin, "dev-login", false, "enable the dev token endpoint")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	cfg, err := config.Load(workspace)
	if err != nil {
		return err
	}
	e := engine.New(conn, cfg)
	return fn(ctx, e)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
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
