package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"dexlower/internal/dex"
	"dexlower/internal/mapping"
)

var dumpCmd = &cobra.Command{
	Use:   "dump [flags] <file>",
	Short: "Print a class snapshot or a name map written by lower",
	Args:  cobra.ExactArgs(1),
	RunE:  runDump,
}

func init() {
	dumpCmd.Flags().Bool("map", false, "the file is a name map rather than a class snapshot")
	dumpCmd.Flags().Bool("bodies", false, "include method bodies")
}

func runDump(cmd *cobra.Command, args []string) error {
	isMap, err := cmd.Flags().GetBool("map")
	if err != nil {
		return fmt.Errorf("failed to get map flag: %w", err)
	}
	bodies, err := cmd.Flags().GetBool("bodies")
	if err != nil {
		return fmt.Errorf("failed to get bodies flag: %w", err)
	}
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()
	cmd.SilenceUsage = true

	out := cmd.OutOrStdout()
	if isMap {
		m, err := mapping.Decode(f)
		if err != nil {
			return err
		}
		return printMap(out, m)
	}
	snap, err := dex.ReadSnapshot(f)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(out, "module %s (%d classes)\n", snap.Module, len(snap.Classes)); err != nil {
		return err
	}
	for i := range snap.Classes {
		if err := printSnapClass(out, &snap.Classes[i], 0, bodies); err != nil {
			return err
		}
	}
	return nil
}

func printSnapClass(w io.Writer, c *dex.SnapClass, indent int, bodies bool) error {
	pad := strings.Repeat("  ", indent)
	var sb strings.Builder
	fmt.Fprintf(&sb, "%sclass %s [%s]\n", pad, c.Name, dex.AccessFlags(c.Flags))
	if c.Super != "" {
		fmt.Fprintf(&sb, "%s  extends %s\n", pad, c.Super)
	}
	for _, i := range c.Interfaces {
		fmt.Fprintf(&sb, "%s  implements %s\n", pad, i)
	}
	for _, a := range c.Annotations {
		fmt.Fprintf(&sb, "%s  @%s\n", pad, a.Type)
	}
	for _, f := range c.Fields {
		fmt.Fprintf(&sb, "%s  field %s %s [%s]\n", pad, f.Name, f.Type, dex.AccessFlags(f.Flags))
	}
	for _, m := range c.Methods {
		fmt.Fprintf(&sb, "%s  method %s%s [%s]\n", pad, m.Name, m.Signature, dex.AccessFlags(m.Flags))
		if bodies && m.Body != "" {
			for _, line := range strings.Split(strings.TrimRight(m.Body, "\n"), "\n") {
				fmt.Fprintf(&sb, "%s    %s\n", pad, line)
			}
		}
	}
	if _, err := io.WriteString(w, sb.String()); err != nil {
		return err
	}
	for i := range c.Inner {
		if err := printSnapClass(w, &c.Inner[i], indent+1, bodies); err != nil {
			return err
		}
	}
	return nil
}

func printMap(w io.Writer, m *mapping.MapFile) error {
	var sb strings.Builder
	for _, e := range m.Types {
		fmt.Fprintf(&sb, "%s -> %s", e.Name, e.DexName)
		if e.Scope != "" {
			fmt.Fprintf(&sb, " (scope %s)", e.Scope)
		}
		sb.WriteByte('\n')
		for _, f := range e.Fields {
			fmt.Fprintf(&sb, "  field %s %s -> %s %s\n", f.Name, f.Type, f.DexName, f.DexType)
		}
		for _, me := range e.Methods {
			fmt.Fprintf(&sb, "  method %s%s -> %s%s #%d\n", me.Name, me.Signature, me.DexName, me.DexSignature, me.ID)
		}
	}
	_, err := io.WriteString(w, sb.String())
	return err
}
