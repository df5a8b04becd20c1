// cmd/labctl/cmd/ports.go
package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.bug.st/serial/enumerator"

	"instrument-service/pkg/devicetypes"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports and identify known USB adapters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ports, err := enumerator.GetDetailedPortsList()
		if err != nil {
			return fmt.Errorf("failed to list serial ports: %w", err)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PORT\tVID:PID\tADAPTER\tKIND\tSERIAL")
		for _, p := range ports {
			ids, adapter, kind := "-", "-", "-"
			if p.IsUSB {
				ids = p.VID + ":" + p.PID
				if info, ok := lookup(p.VID, p.PID); ok {
					adapter = info.Vendor + " " + info.Model
					kind = info.SuggestedKind
				}
			}
			serial := p.SerialNumber
			if serial == "" {
				serial = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", p.Name, ids, adapter, kind, serial)
		}
		return w.Flush()
	},
}

func lookup(vid, pid string) (devicetypes.AdapterInfo, bool) {
	vendorID, err := devicetypes.ParseHexID(vid)
	if err != nil {
		return devicetypes.AdapterInfo{}, false
	}
	productID, err := devicetypes.ParseHexID(pid)
	if err != nil {
		return devicetypes.AdapterInfo{}, false
	}
	return devicetypes.LookupAdapter(vendorID, productID)
}
