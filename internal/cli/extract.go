package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/packingline/internal/config"
	"github.com/ppiankov/packingline/internal/lbl"
	"github.com/ppiankov/packingline/internal/order"
)

var (
	extractProtocol string
	extractPrefix   string
)

func init() {
	rootCmd.AddCommand(extractCmd)
	extractCmd.Flags().StringVarP(&extractProtocol, "protocol", "p", "", "Label protocol (product|control4); default: groups of the order's product")
	extractCmd.Flags().StringVar(&extractPrefix, "prefix", "", "Operator prefix to inject into the product record")
}

var extractCmd = &cobra.Command{
	Use:   "extract <order> <serial>",
	Short: "Show the label data of a serial without printing",
	Long: "Opens the work order and extracts header, record and trigger names for\n" +
		"the serial. Nothing is written. With --prefix the product record is shown\n" +
		"with the operator prefix injected.",
	Args: cobra.ExactArgs(2),
	RunE: runExtract,
}

func protocolsFor(wo *order.WorkOrder) ([]lbl.Protocol, error) {
	switch extractProtocol {
	case config.GroupProduct:
		return []lbl.Protocol{lbl.Product}, nil
	case config.GroupControl4:
		return []lbl.Protocol{lbl.Control4}, nil
	case "":
		var ps []lbl.Protocol
		for _, g := range cfg.TriggerGroupsFor(wo.Product) {
			switch g {
			case config.GroupProduct:
				ps = append(ps, lbl.Product)
			case config.GroupControl4:
				ps = append(ps, lbl.Control4)
			}
		}
		return ps, nil
	default:
		return nil, fmt.Errorf("unknown protocol %q (use product or control4)", extractProtocol)
	}
}

func runExtract(cmd *cobra.Command, args []string) error {
	wo, err := order.Open(cfg.Paths.Orders, args[0])
	if err != nil {
		return err
	}
	serial := lbl.NormalizeSerial(args[1])
	if err := lbl.ValidateSerial(serial); err != nil {
		return err
	}

	protocols, err := protocolsFor(wo)
	if err != nil {
		return err
	}
	if len(protocols) == 0 {
		return fmt.Errorf("product %q has no label protocol in trigger_mapping", wo.Product)
	}

	var results []*lbl.Extracted
	for _, p := range protocols {
		ex, err := lbl.Extract(wo.Lines, serial, p)
		if err != nil {
			return fmt.Errorf("%s: %w", p.Name, err)
		}
		ex = displayText(ex)
		if p.Name == lbl.Product.Name && extractPrefix != "" {
			if ex.Record, err = lbl.InjectPrefix(ex.Header, ex.Record, extractPrefix); err != nil {
				return fmt.Errorf("%s: %w", p.Name, err)
			}
		}
		results = append(results, ex)
	}

	out, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

// displayText decodes the Windows-1250 label text of ex for terminal output.
func displayText(ex *lbl.Extracted) *lbl.Extracted {
	out := &lbl.Extracted{
		Protocol: ex.Protocol,
		Header:   lbl.DecodeText(ex.Header),
		Record:   lbl.DecodeText(ex.Record),
	}
	for _, t := range ex.Triggers {
		out.Triggers = append(out.Triggers, lbl.DecodeText(t))
	}
	return out
}
