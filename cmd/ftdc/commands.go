package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/ftdc-go/ftdc/ftdc"
	"github.com/urfave/cli/v2"
)

func infoCommand() *cli.Command {
	return &cli.Command{
		Name:      "info",
		Usage:     "summarize an FTDC file",
		ArgsUsage: "<file>",
		Action: func(c *cli.Context) error {
			path := c.Args().Get(0)
			if path == "" {
				return cli.Exit("info: missing <file> argument", 1)
			}

			r, err := ftdc.Open(path)
			if err != nil {
				return err
			}
			defer r.Close() //nolint:errcheck

			first, last, ok, err := r.TimeRange()
			if err != nil {
				return err
			}

			metadata, err := r.Metadata()
			if err != nil {
				return err
			}

			var chunks, samples int
			for ch, err := range r.IterChunks() {
				if err != nil {
					return err
				}

				chunks++
				samples += ch.NPoints
			}

			fmt.Printf("file:             %s\n", path)
			fmt.Printf("metadata docs:    %d\n", len(metadata))
			fmt.Printf("chunks:           %d\n", chunks)
			fmt.Printf("samples:          %d\n", samples)

			if ok {
				fmt.Printf("time range:       %s to %s\n", first.Format("2006-01-02T15:04:05Z"), last.Format("2006-01-02T15:04:05Z"))
			} else {
				fmt.Println("time range:       (no chunks)")
			}

			return nil
		},
	}
}

func csvCommand() *cli.Command {
	return &cli.Command{
		Name:      "csv",
		Usage:     "export every sample as CSV",
		ArgsUsage: "<file> <out.csv>",
		Action: func(c *cli.Context) error {
			path, out := c.Args().Get(0), c.Args().Get(1)
			if path == "" || out == "" {
				return cli.Exit("csv: usage: ftdc csv <file> <out.csv>", 1)
			}

			r, err := ftdc.Open(path)
			if err != nil {
				return err
			}
			defer r.Close() //nolint:errcheck

			f, err := os.Create(out) //nolint:gosec
			if err != nil {
				return err
			}
			defer f.Close() //nolint:errcheck

			w := csv.NewWriter(f)
			defer w.Flush()

			var header []string

			for s, err := range r.IterSamples(nil, nil) {
				if err != nil {
					return err
				}

				row := flatten(s.Map())

				if header == nil {
					header = sortedKeys(row)
					if err := w.Write(header); err != nil {
						return err
					}
				}

				record := make([]string, len(header))
				for i, key := range header {
					record[i] = fmt.Sprintf("%v", row[key])
				}

				if err := w.Write(record); err != nil {
					return err
				}
			}

			w.Flush()

			return w.Error()
		},
	}
}

func jsonCommand() *cli.Command {
	return &cli.Command{
		Name:      "json",
		Usage:     "export every sample as newline-delimited JSON",
		ArgsUsage: "<file> <out.ndjson>",
		Action: func(c *cli.Context) error {
			path, out := c.Args().Get(0), c.Args().Get(1)
			if path == "" || out == "" {
				return cli.Exit("json: usage: ftdc json <file> <out.ndjson>", 1)
			}

			r, err := ftdc.Open(path)
			if err != nil {
				return err
			}
			defer r.Close() //nolint:errcheck

			f, err := os.Create(out) //nolint:gosec
			if err != nil {
				return err
			}
			defer f.Close() //nolint:errcheck

			enc := json.NewEncoder(f)

			for s, err := range r.IterSamples(nil, nil) {
				if err != nil {
					return err
				}

				if err := enc.Encode(flatten(s.Map())); err != nil {
					return err
				}
			}

			return nil
		},
	}
}

// flatten collapses a reconstructed sample's nested document into a single
// dotted-key map, the same path convention chunk.Metric.Path uses.
func flatten(v map[string]any) map[string]any {
	out := make(map[string]any)
	flattenInto("", v, out)

	return out
}

func flattenInto(prefix string, v any, out map[string]any) {
	switch t := v.(type) {
	case map[string]any:
		for k, vv := range t {
			flattenInto(joinPath(prefix, k), vv, out)
		}
	case []any:
		for i, vv := range t {
			flattenInto(joinPath(prefix, fmt.Sprintf("%d", i)), vv, out)
		}
	default:
		out[prefix] = v
	}
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}

	return prefix + "." + key
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}
