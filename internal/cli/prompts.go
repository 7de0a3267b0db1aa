package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"personastudio/internal/apiclient"
	"personastudio/internal/prompts"
)

type promptResult struct {
	Original string `json:"original_prompt,omitempty"`
	Prompt   string `json:"prompt"`
	Fallback bool   `json:"fallback,omitempty"`
}

func (r promptResult) text(w io.Writer) {
	fmt.Fprintln(w, r.Prompt)
}

func newEnhanceCommand(opts *RootOptions) *cobra.Command {
	var (
		llm      string
		optimize bool
	)
	cmd := &cobra.Command{
		Use:   "enhance <prompt>",
		Short: "Enrich a prompt with the remote language model",
		Long: `Enrich a prompt with the remote language model.

If the remote call fails, three local style keywords are appended instead.
With --optimize the prompt is rewritten for the image editor and there is no
local fallback.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := opts.remote()
			if err != nil {
				return err
			}
			prompt := strings.Join(args, " ")
			req := apiclient.EnhanceRequest{Prompt: prompt, LLMModel: llmOrDefault(opts, llm)}
			if optimize {
				resp, err := api.OptimizeKontextPrompt(cmd.Context(), req)
				if err != nil {
					return err
				}
				out := promptResult{Original: resp.OriginalPrompt, Prompt: resp.OptimizedPrompt}
				return opts.emit(cmd.OutOrStdout(), out, out.text)
			}
			out := promptResult{Original: prompt}
			resp, err := api.EnhancePrompt(cmd.Context(), req)
			if err != nil || strings.TrimSpace(resp.EnhancedPrompt) == "" {
				opts.logger.Warn().Err(err).Msg("remote enhancement unavailable; using local keywords")
				out.Prompt = prompts.LocalEnhance(prompt, nil)
				out.Fallback = true
			} else {
				out.Prompt = resp.EnhancedPrompt
			}
			return opts.emit(cmd.OutOrStdout(), out, out.text)
		},
	}
	cmd.Flags().StringVar(&llm, "llm-model", "", "language model id (default from profile)")
	cmd.Flags().BoolVar(&optimize, "optimize", false, "rewrite for the image editor")
	return cmd
}

func newSurpriseCommand(opts *RootOptions) *cobra.Command {
	var persona bool
	cmd := &cobra.Command{
		Use:   "surprise",
		Short: "Print a random inspiration prompt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if persona {
				out := promptResult{Prompt: prompts.PersonaIdea(nil)}
				return opts.emit(cmd.OutOrStdout(), out, out.text)
			}
			api, err := opts.remote()
			if err != nil {
				return err
			}
			out := promptResult{}
			text, err := api.SurprisePrompt(cmd.Context())
			if err != nil || strings.TrimSpace(text) == "" {
				opts.logger.Warn().Err(err).Msg("remote surprise unavailable; using local list")
				out.Prompt = prompts.Surprise(nil)
				out.Fallback = true
			} else {
				out.Prompt = text
			}
			return opts.emit(cmd.OutOrStdout(), out, out.text)
		},
	}
	cmd.Flags().BoolVar(&persona, "persona", false, "short persona starter, no remote call")
	return cmd
}

func newCharacterCommand(opts *RootOptions) *cobra.Command {
	var (
		base     string
		llm      string
		file     string
		features map[string]string
	)
	cmd := &cobra.Command{
		Use:   "character",
		Short: "Build a persona prompt from character features",
		Long: `Build a persona prompt from character features.

Features come from --feature key=value pairs, a YAML file given with
--features, or both (flags win). Keys: age, gender, ethnicity, body_type,
hair_style, hair_color, expression, personality, confidence_level,
fashion_style, overall_vibe, background, lighting_style, photo_type.`,
		Example: "  studio character --base 'portrait' --feature hair_style=long --feature age=26-35",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := opts.remote()
			if err != nil {
				return err
			}
			feats, err := loadFeatures(file, features)
			if err != nil {
				return err
			}
			req := apiclient.CharacterPromptRequest{BasePrompt: base, LLMModel: llmOrDefault(opts, llm), CharacterFeatures: feats}
			out := promptResult{Original: base}
			resp, err := api.GenerateCharacterPrompt(cmd.Context(), req)
			if err != nil || strings.TrimSpace(resp.GeneratedPrompt) == "" {
				opts.logger.Warn().Err(err).Msg("remote character prompt unavailable; using feature list")
				out.Prompt = prompts.FeatureFallback(base, feats)
				out.Fallback = true
			} else {
				out.Prompt = resp.GeneratedPrompt
			}
			return opts.emit(cmd.OutOrStdout(), out, out.text)
		},
	}
	cmd.Flags().StringVar(&base, "base", "", "base prompt")
	cmd.Flags().StringVar(&llm, "llm-model", "", "language model id (default from profile)")
	cmd.Flags().StringVar(&file, "features", "", "YAML file of character features")
	cmd.Flags().StringToStringVar(&features, "feature", nil, "character feature as key=value (repeatable)")
	return cmd
}

// loadFeatures merges a YAML feature file with key=value overrides. Unknown
// keys are rejected.
func loadFeatures(path string, overrides map[string]string) (apiclient.CharacterFeatures, error) {
	merged := map[string]string{}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return apiclient.CharacterFeatures{}, fmt.Errorf("read features: %w", err)
		}
		if err := yaml.Unmarshal(raw, &merged); err != nil {
			return apiclient.CharacterFeatures{}, fmt.Errorf("decode features: %w", err)
		}
	}
	for k, v := range overrides {
		merged[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	raw, err := yaml.Marshal(merged)
	if err != nil {
		return apiclient.CharacterFeatures{}, err
	}
	var feats apiclient.CharacterFeatures
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&feats); err != nil && !errors.Is(err, io.EOF) {
		return apiclient.CharacterFeatures{}, fmt.Errorf("invalid feature: %w", err)
	}
	return feats, nil
}

func llmOrDefault(opts *RootOptions, flag string) string {
	if flag != "" {
		return flag
	}
	if opts.profile != nil {
		return opts.profile.LLMModel
	}
	return ""
}
