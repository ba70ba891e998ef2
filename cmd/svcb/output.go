package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/alfredjeanlab/svcbackup/internal/model"
	"github.com/alfredjeanlab/svcbackup/internal/ui"
)

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

// serviceMetaKeys are printed first, in this order; the remaining config
// keys follow sorted.
var serviceMetaKeys = []string{"id", "client_id", "created_at", "updated_at"}

func printService(svc map[string]any) {
	if jsonOutput {
		printJSON(svc)
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, k := range serviceMetaKeys {
		if v, ok := svc[k]; ok {
			fmt.Fprintf(w, "%s:\t%v\n", ui.RenderMuted(k), v)
		}
	}

	var keys []string
	for k := range svc {
		if !isMetaKey(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if len(keys) > 0 {
		fmt.Fprintln(w, ui.RenderAccent("Config:"))
	}
	for _, k := range keys {
		fmt.Fprintf(w, "  %s:\t%s\n", k, formatValue(svc[k]))
	}
	w.Flush()
}

func isMetaKey(k string) bool {
	for _, m := range serviceMetaKeys {
		if k == m {
			return true
		}
	}
	return false
}

func formatValue(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case map[string]any, []any:
		data, _ := json.Marshal(v)
		return string(data)
	default:
		return fmt.Sprint(v)
	}
}

func printEvents(evts []*model.Event) {
	if jsonOutput {
		if evts == nil {
			evts = []*model.Event{}
		}
		printJSON(evts)
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tTOPIC\tACTOR")
	for _, e := range evts {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", e.ID, e.CreatedAt.Local().Format(time.DateTime), ui.RenderTopic(e.Topic), e.Actor)
	}
	w.Flush()
}

// printResult prints an action or admin call result.
func printResult(v any) {
	if jsonOutput {
		printJSON(map[string]any{"result": v})
		return
	}
	fmt.Println(formatValue(v))
}
