package main

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/felipepmaragno/velvet-protocol/internal/auth"
	"github.com/felipepmaragno/velvet-protocol/internal/client"
	"github.com/felipepmaragno/velvet-protocol/internal/credits"
	"github.com/felipepmaragno/velvet-protocol/internal/domain"
	"github.com/felipepmaragno/velvet-protocol/internal/logging"
	"github.com/felipepmaragno/velvet-protocol/internal/orchestrator"
	"github.com/felipepmaragno/velvet-protocol/internal/prompt"
)

// CLI flags
var (
	serverFlag   string
	promptFlag   string
	modeFlag     string
	outputFlag   string
	creditsFlag  int
	adminFlag    string
	saveFlag     string
	logLevelFlag string
)

var rootCmd = &cobra.Command{
	Use:   "velvetctl",
	Short: "Drive a Velvet pipeline server from the command line",
	Long: `velvetctl runs the two-stage Velvet pipeline against a remote server.
Analysis and generation happen on the server; credits, cooldown and the
in-flight guard are enforced locally for this invocation.

Examples:
  velvetctl generate "a sprinter at dawn" --mode sport
  velvetctl generate --prompt "a glass jellyfish" -m ethereal -o video
  velvetctl generate "a moss cathedral" -m organic --admin-password "$PW"
  velvetctl analyze "a clay fox" -m clay
  velvetctl modes`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Setup(logLevelFlag, true)
	},
}

var generateCmd = &cobra.Command{
	Use:   "generate [prompt]",
	Short: "Analyze a prompt and generate an image or video",
	RunE:  runGenerate,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [prompt]",
	Short: "Run only the analysis stage and print the enriched prompt",
	RunE:  runAnalyze,
}

var modesCmd = &cobra.Command{
	Use:   "modes",
	Short: "List the stylistic modes and their tokens",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printModes(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&serverFlag, "server", "s", envOr("VELVET_SERVER", "http://localhost:8080"), "Pipeline server base URL")
	rootCmd.PersistentFlags().StringVarP(&promptFlag, "prompt", "p", "", "Raw prompt (alternative to positional arguments)")
	rootCmd.PersistentFlags().StringVarP(&modeFlag, "mode", "m", string(domain.ModeSport), "Stylistic mode (sport, ethereal, clay, organic)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "warn", "Log level (debug, info, warn, error)")

	generateCmd.Flags().StringVarP(&outputFlag, "output", "o", string(domain.OutputImage), "Output type (image, video)")
	generateCmd.Flags().IntVar(&creditsFlag, "credits", credits.DefaultInitial, "Credits available to this invocation")
	generateCmd.Flags().StringVar(&adminFlag, "admin-password", "", "Unlock unlimited credits; checked against VELVET_ADMIN_PASSWORD_HASH")
	generateCmd.Flags().StringVar(&saveFlag, "save", "", "Write an inline image result to this file")

	rootCmd.AddCommand(generateCmd, analyzeCmd, modesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx := log.Logger.WithContext(cmd.Context())

	mode, err := domain.ParseMode(modeFlag)
	if err != nil {
		return err
	}
	kind, err := domain.ParseOutputKind(outputFlag)
	if err != nil {
		return err
	}

	raw, err := promptText(args)
	if err != nil {
		return err
	}

	remote := client.New(serverFlag, nil)
	orch := orchestrator.New(remote, remote, credits.NewLedger(creditsFlag))

	if adminFlag != "" {
		if err := auth.NewAdminGate(os.Getenv("VELVET_ADMIN_PASSWORD_HASH")).Verify(adminFlag); err != nil {
			return fmt.Errorf("admin unlock: %w", err)
		}
		orch.GrantUnlimited()
	}

	res, err := orch.Run(ctx, domain.GenerationRequest{
		RawPrompt:  raw,
		Mode:       mode,
		OutputKind: kind,
	})
	if err != nil {
		return errors.New(domain.UserMessage(err))
	}

	if saveFlag != "" {
		if err := saveInline(saveFlag, res.ResultLocator); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "saved %s\n", saveFlag)
	}

	return printJSON(cmd.OutOrStdout(), struct {
		Result  *domain.GenerationResult `json:"result"`
		Credits int                      `json:"credits"`
	}{res, orch.Status().Credits})
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	mode, err := domain.ParseMode(modeFlag)
	if err != nil {
		return err
	}

	raw, err := promptText(args)
	if err != nil {
		return err
	}

	ep, err := client.New(serverFlag, nil).Analyze(log.Logger.WithContext(cmd.Context()), raw, mode)
	if err != nil {
		return errors.New(domain.UserMessage(err))
	}
	return printJSON(cmd.OutOrStdout(), ep)
}

// promptText takes the --prompt flag, or else joins the positional arguments.
func promptText(args []string) (string, error) {
	raw := promptFlag
	if raw == "" {
		raw = strings.Join(args, " ")
	}
	if strings.TrimSpace(raw) == "" {
		return "", errors.New("a prompt is required, pass it as an argument or with --prompt")
	}
	return raw, nil
}

func printModes(w io.Writer) error {
	for _, m := range domain.Modes() {
		t, _ := prompt.TokensFor(m)
		fmt.Fprintf(w, "%s\n  lighting: %s\n  texture:  %s\n  camera:   %s\n  vibe:     %s\n", m, t.Lighting, t.Texture, t.Camera, t.Vibe)
	}
	return nil
}

// saveInline decodes a base64 data URI and writes the bytes to path.
func saveInline(path, locator string) error {
	header, payload, ok := strings.Cut(locator, ",")
	if !ok || !strings.HasPrefix(header, "data:") || !strings.HasSuffix(header, ";base64") {
		return fmt.Errorf("result is not an inline payload: %.40s", locator)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return fmt.Errorf("decode inline payload: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
