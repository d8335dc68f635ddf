package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/nao1215/politecrawl/internal/privacy"
	"github.com/spf13/cobra"
)

// errNoFields is returned when evaluate is given nothing to evaluate.
var errNoFields = errors.New("no fields to evaluate: pass field=value arguments or --file")

// NewEvaluateCmd creates the evaluate command.
func NewEvaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate [flags] [field=value...]",
		Short: "Evaluate a record against the privacy collection rules",
		Long: `Evaluate classifies every field of a record, applies the collection
rules and prints the filtered record with the decision for each field.
No request is sent and nothing is stored.

Fields are given as field=value arguments or as a JSON object of strings
read from --file ("-" reads standard input).

Examples:
  politecrawl evaluate title="About us" email=info@example.com

  echo '{"phone":"+1 555 0100","city":"Berlin"}' | politecrawl evaluate -f - -j`,
		RunE: runEvaluateCmd,
	}

	cmd.Flags().StringP("file", "f", "",
		`Read the record from a JSON file ("-" for standard input)`)

	return cmd
}

// evaluation is the output of the evaluate command.
type evaluation struct {
	Record    map[string]string       `json:"record"`
	Decisions []privacy.FieldDecision `json:"decisions"`
}

// runEvaluateCmd executes the evaluate command.
func runEvaluateCmd(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	file, err := cmd.Flags().GetString("file")
	if err != nil {
		return err
	}
	fields, err := readRecord(cmd.InOrStdin(), file, args)
	if err != nil {
		return err
	}

	eng, err := a.offlineEngine()
	if err != nil {
		return err
	}
	record, rep := eng.EvaluateRecord(fields)

	out, err := a.output()
	if err != nil {
		return err
	}

	result := evaluation{Record: record, Decisions: rep.Decisions}
	if result.Record == nil {
		result.Record = map[string]string{}
	}
	if result.Decisions == nil {
		result.Decisions = []privacy.FieldDecision{}
	}

	if a.cfg.JSONReport {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	printEvaluation(out, result)
	return nil
}

// readRecord builds the record from a JSON file and field=value arguments.
// Arguments override fields read from the file.
func readRecord(stdin io.Reader, file string, args []string) (map[string]string, error) {
	fields := make(map[string]string)

	if file != "" {
		var data []byte
		var err error
		if file == "-" {
			data, err = io.ReadAll(stdin)
		} else {
			data, err = os.ReadFile(file) //nolint:gosec // path is given by the user
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read record: %w", err)
		}
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, fmt.Errorf("record must be a JSON object of strings: %w", err)
		}
	}

	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid field %q: expected field=value", arg)
		}
		fields[name] = value
	}

	if len(fields) == 0 {
		return nil, errNoFields
	}
	return fields, nil
}

func printEvaluation(w io.Writer, e evaluation) {
	fmt.Fprintln(w, "Decisions:")
	for _, d := range e.Decisions {
		mark := "[+]"
		switch {
		case !d.Allowed:
			mark = "[-]"
		case d.Anonymize:
			mark = "[~]"
		}
		rule := d.Rule
		if rule == "" {
			rule = "-"
		}
		fmt.Fprintf(w, "  %s %-20s %-10s rule: %s\n", mark, d.Field, d.Category, rule)
	}

	fmt.Fprintln(w, "\nRecord:")
	if len(e.Record) == 0 {
		fmt.Fprintln(w, "  (empty)")
		return
	}
	for _, name := range slices.Sorted(maps.Keys(e.Record)) {
		fmt.Fprintf(w, "  %s = %s\n", name, e.Record[name])
	}
}
