package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/recordimport/internal/core"
	"github.com/JonMunkholm/recordimport/internal/logging"
)

// errInvalidRows makes validate --strict exit non-zero.
var errInvalidRows = errors.New("file has invalid rows")

func newRootCmd() *cobra.Command {
	var (
		logLevel string
		noColor  bool
	)

	root := &cobra.Command{
		Use:           "importcheck",
		Short:         "Validate record files before importing them",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Setup(logLevel, "text")
			if noColor {
				pterm.DisableColor()
			}
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	root.AddCommand(newSchemasCmd(), newTemplateCmd(), newValidateCmd(), newNormalizeCmd())

	return root
}

func newSchemasCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schemas",
		Short: "List the record types files can be checked against",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data := pterm.TableData{{"Name", "Label", "Collection", "Fields"}}
			for _, s := range core.All() {
				fields := make([]string, len(s.Fields))
				for i, f := range s.Fields {
					fields[i] = describeField(f)
				}
				data = append(data, []string{s.Name, s.Label, s.Target(), strings.Join(fields, ", ")})
			}
			return renderTable(cmd.OutOrStdout(), data)
		},
	}
}

func newTemplateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "template <schema>",
		Short: "Print the header line for a record type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := lookupSchema(args[0])
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(core.Encode(nil, schema.FieldOrder()))
			return err
		},
	}
}

func newValidateCmd() *cobra.Command {
	var (
		schemaName string
		invalidOut string
		limit      int
		strict     bool
	)

	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Classify a file and report its invalid rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, result, err := classifyFile(schemaName, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printSummary(out, args[0], result)
			if len(result.InvalidRows) > 0 {
				if err := renderTable(out, invalidRowsTable(result, limit)); err != nil {
					return err
				}
				if limit > 0 && len(result.InvalidRows) > limit {
					fmt.Fprintf(out, "%s\n", pterm.Gray(fmt.Sprintf("... %d more", len(result.InvalidRows)-limit)))
				}
			}

			if invalidOut != "" && len(result.InvalidRows) > 0 {
				if err := os.WriteFile(invalidOut, core.EncodeInvalidRows(result), 0o644); err != nil {
					return errors.Wrap(err, "write invalid rows")
				}
				fmt.Fprintf(out, "%s %s\n", pterm.LightGreen("Invalid rows written to"), invalidOut)
			}

			if strict && len(result.InvalidRows) > 0 {
				return errors.Wrapf(errInvalidRows, "%s: %d of %d %s rows",
					args[0], len(result.InvalidRows), result.Total, schema.Name)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&schemaName, "schema", "s", "", "Record type to validate against (required)")
	cmd.Flags().StringVar(&invalidOut, "invalid-out", "", "Write invalid rows with their errors to this CSV file")
	cmd.Flags().IntVar(&limit, "limit", 20, "Invalid rows to show, 0 for all")
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit non-zero when any row is invalid")
	_ = cmd.MarkFlagRequired("schema")
	return cmd
}

func newNormalizeCmd() *cobra.Command {
	var (
		schemaName string
		output     string
		fields     []string
	)

	cmd := &cobra.Command{
		Use:   "normalize <file>",
		Short: "Re-encode the valid rows of a file in canonical form",
		Long: `Writes the rows that would be committed, with trimmed values,
canonical enum spelling and the schema's column order. Invalid rows are left out.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, result, err := classifyFile(schemaName, args[0])
			if err != nil {
				return err
			}

			order := fields
			if len(order) == 0 {
				order = schema.FieldOrder()
			}
			content := core.Encode(result.ValidRows, order)

			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(content)
				return err
			}
			if err := os.WriteFile(output, content, 0o644); err != nil {
				return errors.Wrap(err, "write output")
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%d rows written to %s, %d invalid rows skipped\n",
				len(result.ValidRows), output, len(result.InvalidRows))
			return nil
		},
	}

	cmd.Flags().StringVarP(&schemaName, "schema", "s", "", "Record type of the file (required)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file, stdout when empty")
	cmd.Flags().StringSliceVar(&fields, "fields", nil, "Columns to write, in order")
	_ = cmd.MarkFlagRequired("schema")
	return cmd
}

func lookupSchema(name string) (core.RecordSchema, error) {
	schema, ok := core.Lookup(name)
	if !ok {
		names := make([]string, 0, core.SchemaCount())
		for _, s := range core.All() {
			names = append(names, s.Name)
		}
		return core.RecordSchema{}, errors.WithHintf(
			errors.Wrapf(core.ErrUnknownSchema, "%q", name),
			"Known record types: %s", strings.Join(names, ", "),
		)
	}
	return schema, nil
}

func classifyFile(schemaName, path string) (core.RecordSchema, core.ClassificationResult, error) {
	schema, err := lookupSchema(schemaName)
	if err != nil {
		return core.RecordSchema{}, core.ClassificationResult{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return core.RecordSchema{}, core.ClassificationResult{}, errors.Wrap(err, "open file")
	}
	defer f.Close()

	rows, err := core.Decode(f)
	if err != nil {
		return core.RecordSchema{}, core.ClassificationResult{}, errors.Wrapf(err, "decode %s", path)
	}
	return schema, core.Classify(schema, rows), nil
}

func printSummary(out io.Writer, path string, result core.ClassificationResult) {
	counts := result.Counts()
	fmt.Fprintf(out, "%s %s\n", pterm.Bold.Sprint(path), pterm.Gray("("+result.Schema+")"))
	fmt.Fprintf(out, "  %s %d  %s %d  %s %d\n",
		pterm.Gray("rows"), counts.Total,
		pterm.LightGreen("valid"), counts.Valid,
		pterm.Red("invalid"), counts.Invalid,
	)
	if len(result.Columns.Missing) > 0 {
		fmt.Fprintf(out, "  %s %s\n", pterm.Yellow("missing columns:"), strings.Join(result.Columns.Missing, ", "))
	}
	if len(result.Columns.Ignored) > 0 {
		fmt.Fprintf(out, "  %s %s\n", pterm.Gray("ignored columns:"), strings.Join(result.Columns.Ignored, ", "))
	}
}

func invalidRowsTable(result core.ClassificationResult, limit int) pterm.TableData {
	data := pterm.TableData{{"Line", "Errors"}}
	for i, row := range result.InvalidRows {
		if limit > 0 && i == limit {
			break
		}
		msgs := make([]string, len(row.Errors))
		for j, fe := range row.Errors {
			msgs[j] = fe.String()
		}
		data = append(data, []string{strconv.Itoa(row.Line), strings.Join(msgs, "; ")})
	}
	return data
}

func describeField(f core.FieldSpec) string {
	s := f.Name + ":" + f.Kind.String()
	if f.Kind == core.KindEnum {
		s += "(" + strings.Join(f.EnumValues, "|") + ")"
	}
	if f.Required {
		s += "*"
	}
	return s
}

func renderTable(out io.Writer, data pterm.TableData) error {
	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return errors.Wrap(err, "render table")
	}
	_, err = fmt.Fprintln(out, table)
	return err
}
