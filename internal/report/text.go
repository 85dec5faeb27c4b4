package report

import (
	"bufio"
	"fmt"
	"io"
)

// RenderText writes the human-readable report.
func RenderText(w io.Writer, r Report) error {
	bw := bufio.NewWriter(w)

	writeSide(bw, "legacy", r.Legacy)
	writeSide(bw, "canonical", r.Canonical)

	if r.Compared {
		fmt.Fprintln(bw, "---")
		writeList(bw, fmt.Sprintf("Missing from canonical (%d):", len(r.Missing)), r.Missing, "none missing")
		writeList(bw, fmt.Sprintf("Only in canonical (%d):", len(r.Extra)), r.Extra, "none extra")
	}

	if len(r.Regions) > 0 || len(r.Unclassified) > 0 {
		fmt.Fprintln(bw, "---")
		for _, g := range r.Regions {
			if g.Error != "" {
				fmt.Fprintf(bw, "Region %s: NOT MERGED, marker %q not found; insert by hand:\n", g.Name, g.Marker)
				for _, t := range g.Titles {
					fmt.Fprintf(bw, "  - %s\n", t)
				}
				continue
			}
			fmt.Fprintf(bw, "Region %s: inserted %d\n", g.Name, g.Inserted)
		}
		if len(r.Unclassified) > 0 {
			writeList(bw, fmt.Sprintf("Unclassified, not inserted (%d):", len(r.Unclassified)), r.Unclassified, "")
		}
	}

	switch {
	case r.Declined:
		fmt.Fprintln(bw, "Merge cancelled; nothing written.")
	case r.Written:
		fmt.Fprintf(bw, "Backup saved as: %s\n", r.Backup)
		fmt.Fprintf(bw, "Added %d records to %s\n", r.Inserted(), r.Canonical.Path)
	case r.WriteFailed && r.Backup != "":
		fmt.Fprintf(bw, "Write failed; original kept in backup: %s\n", r.Backup)
	case r.WriteFailed:
		fmt.Fprintln(bw, "Backup failed; nothing written.")
	case r.Backup != "":
		fmt.Fprintf(bw, "No changes written; backup saved as: %s\n", r.Backup)
	}

	return bw.Flush()
}

func writeSide(w io.Writer, name string, s Side) {
	if s.Error != "" {
		fmt.Fprintf(w, "Records in %s (%s): unavailable: %s\n", name, s.Path, s.Error)
		return
	}
	if s.Skipped > 0 {
		fmt.Fprintf(w, "Records in %s (%s): %d (%d skipped)\n", name, s.Path, s.Records, s.Skipped)
		return
	}
	fmt.Fprintf(w, "Records in %s (%s): %d\n", name, s.Path, s.Records)
}

func writeList(w io.Writer, header string, items []string, empty string) {
	fmt.Fprintln(w, header)
	if len(items) == 0 && empty != "" {
		fmt.Fprintf(w, "  %s\n", empty)
	}
	for _, it := range items {
		fmt.Fprintf(w, "  - %s\n", it)
	}
}
