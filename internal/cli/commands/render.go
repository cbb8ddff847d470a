package commands

import (
	"fmt"
	"time"

	"github.com/ssogunle-tc/datahub/internal/cli/output"
	"github.com/ssogunle-tc/datahub/internal/engine"
	"github.com/ssogunle-tc/datahub/internal/state"
)

var lineageHeader = []string{"Table", "Platform", "Upstream", "Server"}

type upstreamJSON struct {
	Name             string `json:"name"`
	FullName         string `json:"full_name"`
	DatasourceServer string `json:"datasource_server"`
	Platform         string `json:"platform"`
	PlatformInstance string `json:"platform_instance,omitempty"`
	Env              string `json:"env,omitempty"`
}

type warningJSON struct {
	Key     string `json:"key"`
	Message string `json:"message"`
}

type tableJSON struct {
	Dataset   string         `json:"dataset,omitempty"`
	Table     string         `json:"table"`
	Upstreams []upstreamJSON `json:"upstreams"`
	Warnings  []warningJSON  `json:"warnings,omitempty"`
}

type resultJSON struct {
	RunID  string      `json:"run_id,omitempty"`
	Tables []tableJSON `json:"tables"`
}

// renderResult writes the lineage of a resolution.
func renderResult(r *output.Renderer, result *engine.Result) error {
	if r.EffectiveMode() == output.ModeJSON {
		out := resultJSON{RunID: result.RunID, Tables: make([]tableJSON, 0, len(result.Tables))}
		for _, t := range result.Tables {
			tj := tableJSON{Dataset: t.Dataset, Table: t.Table, Upstreams: []upstreamJSON{}}
			for _, u := range t.Upstreams {
				tj.Upstreams = append(tj.Upstreams, upstreamJSON{
					Name:             u.Name,
					FullName:         u.FullName,
					DatasourceServer: u.DatasourceServer,
					Platform:         u.DataHubDataPlatformName,
					PlatformInstance: u.PlatformInstance,
					Env:              u.Env,
				})
			}
			for _, w := range t.Warnings {
				tj.Warnings = append(tj.Warnings, warningJSON{Key: w.Key, Message: w.Message})
			}
			out.Tables = append(out.Tables, tj)
		}
		return r.JSON(out)
	}

	var rows [][]string
	var warnings []state.Warning
	for _, t := range result.Tables {
		for _, u := range t.Upstreams {
			rows = append(rows, []string{t.Table, u.DataHubDataPlatformName, u.FullName, u.DatasourceServer})
		}
		for _, w := range t.Warnings {
			warnings = append(warnings, state.Warning{Table: t.Table, Key: w.Key, Message: w.Message})
		}
	}

	if r.EffectiveMode() == output.ModeCSV {
		r.Table(lineageHeader, rows)
		return nil
	}

	r.Header(1, fmt.Sprintf("Lineage (%d tables, %d upstreams)", len(result.Tables), len(rows)))
	renderRows(r, rows)
	renderWarnings(r, warnings)
	if result.RunID != "" {
		r.KeyValue("Run", result.RunID)
	}
	r.Muted(fmt.Sprintf("Resolved in %s", result.Duration.Round(time.Millisecond)))
	return nil
}

// renderLineage writes persisted lineage and warnings.
func renderLineage(r *output.Renderer, run *state.Run, lineage []state.TableLineage, warnings []state.Warning) error {
	if r.EffectiveMode() == output.ModeJSON {
		out := resultJSON{RunID: run.ID, Tables: make([]tableJSON, 0, len(lineage))}
		for _, l := range lineage {
			tj := tableJSON{Table: l.Table, Upstreams: []upstreamJSON{}}
			for _, u := range l.Upstreams {
				tj.Upstreams = append(tj.Upstreams, upstreamJSON{
					Name:             u.Name,
					FullName:         u.FullName,
					DatasourceServer: u.DatasourceServer,
					Platform:         u.Platform,
				})
			}
			out.Tables = append(out.Tables, tj)
		}
		for _, w := range warnings {
			out.Tables = appendWarning(out.Tables, w)
		}
		return r.JSON(out)
	}

	var rows [][]string
	for _, l := range lineage {
		for _, u := range l.Upstreams {
			rows = append(rows, []string{l.Table, u.Platform, u.FullName, u.DatasourceServer})
		}
	}
	if r.EffectiveMode() == output.ModeCSV {
		r.Table(lineageHeader, rows)
		return nil
	}

	r.Header(1, "Run "+run.ID)
	r.KeyValue("Status", string(run.Status))
	r.KeyValue("Started", run.StartedAt.Format(time.RFC3339))
	if run.Error != "" {
		r.KeyValue("Error", run.Error)
	}
	r.Println("")
	renderRows(r, rows)
	renderWarnings(r, warnings)
	return nil
}

func appendWarning(tables []tableJSON, w state.Warning) []tableJSON {
	for i := range tables {
		if tables[i].Table == w.Table {
			tables[i].Warnings = append(tables[i].Warnings, warningJSON{Key: w.Key, Message: w.Message})
			return tables
		}
	}
	return append(tables, tableJSON{
		Table:     w.Table,
		Upstreams: []upstreamJSON{},
		Warnings:  []warningJSON{{Key: w.Key, Message: w.Message}},
	})
}

func renderRows(r *output.Renderer, rows [][]string) {
	if len(rows) == 0 {
		r.Muted("No upstream tables found.")
		return
	}
	r.Table(lineageHeader, rows)
	r.Println("")
}

func renderWarnings(r *output.Renderer, warnings []state.Warning) {
	if len(warnings) == 0 {
		return
	}
	r.Header(2, fmt.Sprintf("Warnings (%d)", len(warnings)))
	for _, w := range warnings {
		r.Warning(w.Key, w.Message)
	}
	r.Println("")
}
