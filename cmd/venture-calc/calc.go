package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/iwvelando/venture-calc/pkg/calc"
	"github.com/iwvelando/venture-calc/pkg/output"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

func newCalcCmd(opts *rootOptions) *cobra.Command {
	var paramsFile, outputFormat string
	var sets []string

	cmd := &cobra.Command{
		Use:   "calc <kind>",
		Short: "Run one calculation and print the result",
		Long: `Runs a calculation from a YAML parameter file and/or --set overrides.

Example:
  venture-calc calc roi --set investment=50000 --set revenue=40000 --set costs=15000 --set years=5
  venture-calc calc npv --params npv.yaml --output json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := calc.ParseKind(args[0])
			if err != nil {
				return err
			}

			params, err := loadParams(paramsFile, sets)
			if err != nil {
				return err
			}

			format := opts.conf.Output.Format
			if outputFormat != "" {
				format = outputFormat
			}

			result := calc.NewEngine(opts.logger).Calculate(kind, params)
			if err := output.Render(cmd.OutOrStdout(), format, result); err != nil {
				return err
			}
			if !result.OK() {
				opts.logger.Debug("calculation failed",
					zap.String("op", "main.calc"),
					zap.String("kind", string(kind)),
					zap.String("error", result.Error),
				)
				return fmt.Errorf("%s calculation failed: %s", kind, result.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&paramsFile, "params", "p", "", "YAML file of calculation parameters")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "parameter override as key=value (repeatable); values are parsed as YAML")
	cmd.Flags().StringVarP(&outputFormat, "output", "o", "", "output format override: pretty, csv, json")
	return cmd
}

// loadParams merges the parameter file with --set overrides, later values
// winning. Override values are YAML so lists and numbers keep their types.
func loadParams(path string, sets []string) (map[string]interface{}, error) {
	params := make(map[string]interface{})
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read params file: %w", err)
		}
		if err := yaml.Unmarshal(data, &params); err != nil {
			return nil, fmt.Errorf("failed to parse params file %s: %w", path, err)
		}
		if params == nil {
			params = make(map[string]interface{})
		}
	}

	for _, set := range sets {
		key, raw, ok := strings.Cut(set, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q: expected key=value", set)
		}
		var value interface{}
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
			return nil, fmt.Errorf("invalid value for %s: %w", key, err)
		}
		params[key] = value
	}
	return params, nil
}

func newKindsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List calculation kinds and their required parameters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, kind := range calc.Kinds() {
				fields, err := calc.RequiredFields(kind)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%-14s %s\n", kind, strings.Join(fields, ", "))
			}
			return nil
		},
	}
}
