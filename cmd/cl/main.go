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

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"caseline/internal/config"
	"caseline/internal/db"
	"caseline/internal/engine"
	"caseline/internal/engine/gate"
	"caseline/internal/migrate"
	"caseline/internal/repo"
	"caseline/internal/server"
	"caseline/internal/stage"
)

var rootCmd = &cobra.Command{
	Use:   "cl",
	Short: "Caseline CLI",
	Long: `Caseline turns a one-paragraph business idea into an approved business case.
An agent drafts each document (PRD, system design, effort, cost, value,
financial model); a human approves or rejects every one before the next is
generated. Cases live in the workspace .caseline database.

Typical flow:
  cl case create --title ... --problem ...   draft the PRD
  cl case submit <id> --stage prd            send it for review
  cl case approve <id> --stage prd           approve; next document generates
  ... repeat per stage; cost and value both need approval before the
  financial model; a final approver signs off last.`,
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
	viper.SetEnvPrefix("CASELINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().StringSlice("roles", nil, "roles to act with (e.g. ADMIN,FINANCE_APPROVER)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("roles", rootCmd.PersistentFlags().Lookup("roles"))
}

func registerCommands() {
	rootCmd.AddCommand(caseCmd())
	rootCmd.AddCommand(jobCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(settingsCmd())
	rootCmd.AddCommand(rolesCmd())
	rootCmd.AddCommand(keysCmd())
	rootCmd.AddCommand(serveCmd())
}

func actor() gate.Actor {
	return gate.Actor{
		ID:    viper.GetString("actor-id"),
		Roles: viper.GetStringSlice("roles"),
	}
}

func caseCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "case",
		Short: "Manage business cases",
		Long:  "A case moves through INTAKE, PRD, system design, effort, costing and value analysis, financial model, and final approval. Every generated document needs a human approval before the next one is drafted.",
	}
	c.AddCommand(caseCreateCmd())
	c.AddCommand(caseListCmd())
	c.AddCommand(caseShowCmd())
	c.AddCommand(caseUpdateCmd())
	c.AddCommand(caseSubmitCmd())
	c.AddCommand(caseApproveCmd())
	c.AddCommand(caseRejectCmd())
	c.AddCommand(caseRetryCmd())
	c.AddCommand(caseHistoryCmd())
	return c
}

func caseCreateCmd() *cobra.Command {
	var title, problem string
	var links []string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a case and draft its PRD",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, out, err := e.CreateCase(ctx, engine.CreateCaseOptions{
					UserID:           viper.GetString("actor-id"),
					Title:            title,
					ProblemStatement: problem,
					RelevantLinks:    links,
				})
				if err != nil {
					return err
				}
				if out.GenerationError != "" {
					fmt.Fprintf(os.Stderr, "PRD drafting failed: %s\n", out.GenerationError)
				}
				return printJSONOrDump(c)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "case title")
	cmd.Flags().StringVar(&problem, "problem", "", "problem statement")
	cmd.Flags().StringArrayVar(&links, "link", []string{}, "relevant link (repeatable)")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("problem")
	return cmd
}

func caseListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your cases",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListCases(ctx, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Status", "Updated"})
				for _, c := range items {
					tw.AppendRow(table.Row{c.ID, c.Title, c.Status, c.UpdatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func caseShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a case with its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.GetCase(ctx, args[0], actor())
				if err != nil {
					return err
				}
				return printJSONOrDump(c)
			})
		},
	}
	return cmd
}

func caseUpdateCmd() *cobra.Command {
	var title, problem string
	var links []string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update intake fields (title, problem, links)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.UpdateIntakeOptions{CaseID: args[0], Actor: actor()}
			if cmd.Flags().Changed("title") {
				opts.Title = &title
			}
			if cmd.Flags().Changed("problem") {
				opts.ProblemStatement = &problem
			}
			if cmd.Flags().Changed("link") {
				opts.RelevantLinks = links
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.UpdateIntake(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrDump(c)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "case title")
	cmd.Flags().StringVar(&problem, "problem", "", "problem statement")
	cmd.Flags().StringArrayVar(&links, "link", []string{}, "relevant link (repeatable)")
	return cmd
}

func stageFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVar(target, "stage", "", "stage: prd, system_design, effort_estimate, cost_estimate, value_projection, financial_model, final")
	_ = cmd.MarkFlagRequired("stage")
}

func caseSubmitCmd() *cobra.Command {
	var stageName string
	cmd := &cobra.Command{
		Use:   "submit <id>",
		Short: "Submit a stage document for review",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := stage.Parse(stageName)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				out, err := e.SubmitForReview(ctx, engine.SubmitOptions{CaseID: args[0], Stage: st, Actor: actor()})
				if err != nil {
					return err
				}
				return printJSONOrDump(out)
			})
		},
	}
	stageFlag(cmd, &stageName)
	return cmd
}

func caseApproveCmd() *cobra.Command {
	var stageName string
	cmd := &cobra.Command{
		Use:   "approve <id>",
		Short: "Approve a stage (triggers the next generation)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := stage.Parse(stageName)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				out, err := e.Approve(ctx, engine.ApproveOptions{CaseID: args[0], Stage: st, Actor: actor()})
				if err != nil {
					return err
				}
				if out.GenerationError != "" {
					fmt.Fprintf(os.Stderr, "generation failed: %s (approval recorded; retry with 'cl case retry')\n", out.GenerationError)
				}
				return printJSONOrDump(out)
			})
		},
	}
	stageFlag(cmd, &stageName)
	return cmd
}

func caseRejectCmd() *cobra.Command {
	var stageName, reason string
	cmd := &cobra.Command{
		Use:   "reject <id>",
		Short: "Reject a stage back to its owner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := stage.Parse(stageName)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				out, err := e.Reject(ctx, engine.RejectOptions{CaseID: args[0], Stage: st, Actor: actor(), Reason: reason})
				if err != nil {
					return err
				}
				return printJSONOrDump(out)
			})
		},
	}
	stageFlag(cmd, &stageName)
	cmd.Flags().StringVar(&reason, "reason", "", "rejection reason")
	return cmd
}

func caseRetryCmd() *cobra.Command {
	var stageName string
	cmd := &cobra.Command{
		Use:   "retry <id>",
		Short: "Retry a failed document generation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := stage.Parse(stageName)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				out, err := e.RetryGeneration(ctx, engine.RetryOptions{CaseID: args[0], Target: st, Actor: actor()})
				if err != nil {
					return err
				}
				return printJSONOrDump(out)
			})
		},
	}
	stageFlag(cmd, &stageName)
	return cmd
}

func caseHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <id>",
		Short: "Show the append-only case history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.GetCase(ctx, args[0], actor())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(c.History)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"TS", "Source", "Type", "Content"})
				for _, h := range c.History {
					tw.AppendRow(table.Row{h.TS, h.Source, h.Type, h.Content})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func jobCmd() *cobra.Command {
	j := &cobra.Command{
		Use:   "job",
		Short: "Async case-generation jobs",
	}
	j.AddCommand(jobStartCmd())
	j.AddCommand(jobShowCmd())
	j.AddCommand(jobListCmd())
	j.AddCommand(jobCancelCmd())
	return j
}

func jobStartCmd() *cobra.Command {
	var title, problem string
	var links []string
	var wait bool
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a case-generation job",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts := engine.CreateCaseOptions{
					UserID:           viper.GetString("actor-id"),
					Title:            title,
					ProblemStatement: problem,
					RelevantLinks:    links,
				}
				j, err := e.StartCaseJob(ctx, opts)
				if err != nil {
					return err
				}
				if wait {
					j, err = e.RunCaseJob(ctx, j.ID, opts)
					if err != nil {
						return err
					}
				}
				return printJSONOrDump(j)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "case title")
	cmd.Flags().StringVar(&problem, "problem", "", "problem statement")
	cmd.Flags().StringArrayVar(&links, "link", []string{}, "relevant link (repeatable)")
	cmd.Flags().BoolVar(&wait, "wait", true, "run the job inline and wait for it")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("problem")
	return cmd
}

func jobShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				j, err := r.GetJob(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrDump(j)
			})
		},
	}
	return cmd
}

func jobListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				jobs, err := r.ListJobs(ctx, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(jobs)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Status", "Progress", "Case", "Error"})
				for _, j := range jobs {
					tw.AppendRow(table.Row{j.ID, j.Status, j.Progress, j.BusinessCaseID, j.ErrorMessage})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func jobCancelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a pending job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				j, err := e.CancelJob(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrDump(j)
			})
		},
	}
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Workspace configuration",
		Long:  "Config lives in caseline.yml: the final approver role default, extra stage approver roles, and the rate card used for costing.",
	}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default caseline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(name)), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "caseline", "service name")
	return cmd
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return printJSONOrDump(e.Config)
			})
		},
	}
	return cmd
}

func configValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate caseline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			_ = cfg
			fmt.Println("config OK")
			return nil
		},
	}
	return cmd
}

func settingsCmd() *cobra.Command {
	s := &cobra.Command{
		Use:   "settings",
		Short: "Runtime settings",
	}
	s.AddCommand(settingsGetFinalApproverCmd())
	s.AddCommand(settingsSetFinalApproverCmd())
	return s
}

func settingsGetFinalApproverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get-final-approver",
		Short: "Show the final approver role",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				role, err := e.Gate.FinalApproverRole(ctx)
				if err != nil {
					return err
				}
				return printJSONOrDump(map[string]string{"final_approver_role": role})
			})
		},
	}
	return cmd
}

func settingsSetFinalApproverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-final-approver <role>",
		Short: "Set the final approver role (applies to subsequent approvals)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.Gate.SetFinalApproverRole(ctx, args[0]); err != nil {
					return err
				}
				return printJSONOrDump(map[string]string{"final_approver_role": args[0]})
			})
		},
	}
	return cmd
}

func rolesCmd() *cobra.Command {
	r := &cobra.Command{
		Use:   "roles",
		Short: "Server-side role grants",
		Long:  "Grants add roles to an actor on top of whatever their token carries. Known roles: ADMIN, DEVELOPER, TECHNICAL_ARCHITECT, FINANCE_APPROVER, SALES_MANAGER_APPROVER, FINAL_APPROVER.",
	}
	r.AddCommand(rolesGrantCmd())
	r.AddCommand(rolesRevokeCmd())
	r.AddCommand(rolesListCmd())
	return r
}

func rolesGrantCmd() *cobra.Command {
	var target, role string
	cmd := &cobra.Command{
		Use:   "grant",
		Short: "Grant a role to an actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			if target == "" || role == "" {
				return fmt.Errorf("--actor and --role required")
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.GrantRole(ctx, target, role)
			})
		},
	}
	cmd.Flags().StringVar(&target, "actor", "", "actor id")
	cmd.Flags().StringVar(&role, "role", "", "role id")
	return cmd
}

func rolesRevokeCmd() *cobra.Command {
	var target, role string
	cmd := &cobra.Command{
		Use:   "revoke",
		Short: "Revoke a role from an actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			if target == "" || role == "" {
				return fmt.Errorf("--actor and --role required")
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.RevokeRole(ctx, target, role)
			})
		},
	}
	cmd.Flags().StringVar(&target, "actor", "", "actor id")
	cmd.Flags().StringVar(&role, "role", "", "role id")
	return cmd
}

func rolesListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <actor>",
		Short: "List an actor's granted roles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				roles, err := r.ActorRoles(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrDump(roles)
			})
		},
	}
	return cmd
}

func keysCmd() *cobra.Command {
	k := &cobra.Command{
		Use:   "keys",
		Short: "API keys for non-interactive callers",
	}
	k.AddCommand(keysCreateCmd())
	k.AddCommand(keysDeleteCmd())
	return k
}

func keysCreateCmd() *cobra.Command {
	var target, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key (the raw key is shown once)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if target == "" {
				return fmt.Errorf("--actor required")
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if err := r.EnsureActor(ctx, target); err != nil {
					return err
				}
				raw, err := repo.NewRawAPIKey()
				if err != nil {
					return err
				}
				key, err := r.CreateAPIKey(ctx, target, name, raw)
				if err != nil {
					return err
				}
				return printJSONOrDump(map[string]string{"id": key.ID, "actor_id": key.ActorID, "key": raw})
			})
		},
	}
	cmd.Flags().StringVar(&target, "actor", "", "actor id")
	cmd.Flags().StringVar(&name, "name", "", "key name")
	return cmd
}

func keysDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.DeleteAPIKey(ctx, args[0])
			})
		},
	}
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfg, err := loadConfig(workspace)
			if err != nil {
				return err
			}
			e := engine.New(conn, cfg)
			authCfg := server.AuthConfig{JWTSecret: os.Getenv("CASELINE_JWT_SECRET")}
			if authCfg.JWTSecret == "" {
				return fmt.Errorf("CASELINE_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Caseline API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

// --- helpers ---

func loadConfig(workspace string) (*config.Config, error) {
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.Default("caseline")
	}
	return cfg, nil
}

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
	cfg, err := loadConfig(workspace)
	if err != nil {
		return err
	}
	return fn(ctx, engine.New(conn, cfg))
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

func printJSONOrDump(v any) error {
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
