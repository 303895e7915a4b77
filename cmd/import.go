package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/medspa-portal/internal/fetcher"
	"github.com/sells-group/medspa-portal/internal/model"
	"github.com/sells-group/medspa-portal/internal/portal"
)

var importDryRun bool

var importCmd = &cobra.Command{
	Use:   "import <file.csv|file.tsv|file.xlsx>",
	Short: "Bulk create patients from a spreadsheet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		path := args[0]

		if !importDryRun && (cfg.Airtable.Token == "" || cfg.Airtable.BaseID == "") {
			return eris.New("airtable token and base id are required (MEDSPA_AIRTABLE_TOKEN, MEDSPA_AIRTABLE_BASE_ID)")
		}

		table, err := fetcher.ReadTable(ctx, path)
		if err != nil {
			return eris.Wrap(err, "import: read file")
		}
		inputs := patientInputs(table.Records())

		svcCfg, err := portal.ConfigFrom(cfg)
		if err != nil {
			return err
		}
		deps := portal.Deps{}
		if !importDryRun {
			deps.Airtable = newAirtableClient(cfg)
		}
		svc := portal.New(svcCfg, deps)

		created, rowErrs, err := svc.ImportPatients(ctx, inputs, importDryRun)
		for _, re := range rowErrs {
			zap.L().Warn("import: skipped row",
				zap.Int("record", re.Index+1),
				zap.String("name", inputs[re.Index].Name),
				zap.Error(re.Err),
			)
		}
		if err != nil {
			return eris.Wrap(err, "import")
		}

		verb := "created"
		if importDryRun {
			verb = "would create"
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %d patients, skipped %d of %d records\n",
			verb, created, len(rowErrs), len(inputs))
		zap.L().Info("import complete",
			zap.String("file", path),
			zap.Int("created", created),
			zap.Int("skipped", len(rowErrs)),
			zap.Bool("dry_run", importDryRun),
		)
		return nil
	},
}

// patientInputs maps spreadsheet rows onto questionnaire inputs. Header
// names are matched case-insensitively.
func patientInputs(records []fetcher.Record) []model.PatientInput {
	out := make([]model.PatientInput, 0, len(records))
	for _, r := range records {
		in := model.PatientInput{
			Name:     r.Get("name", "patient name", "full name"),
			Email:    r.Get("email", "email address"),
			Phone:    r.Get("phone", "phone number", "mobile"),
			SkinType: r.Get("skin type", "skin_type"),
			PhotoURL: r.Get("photo url", "photo_url", "photo"),
		}
		if in.Name == "" {
			in.Name = strings.TrimSpace(r.Get("first name", "first_name") + " " + r.Get("last name", "last_name"))
		}
		if age := r.Get("age"); age != "" {
			n, err := strconv.Atoi(age)
			if err != nil {
				n = -1
			}
			in.Age = n
		}
		for _, c := range strings.FieldsFunc(r.Get("concerns", "questionnaire"), func(ch rune) bool { return ch == ',' || ch == ';' }) {
			if c = strings.TrimSpace(c); c != "" {
				in.Concerns = append(in.Concerns, c)
			}
		}
		out = append(out, in)
	}
	return out
}

func init() {
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "validate rows without writing to Airtable")
	rootCmd.AddCommand(importCmd)
}
