package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/dwn/pkg/dwn"
	"github.com/cuemby/dwn/pkg/dwncid"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Submit a signed DWN message",
	Long: `Apply reads a canonically CBOR-encoded, signed DWN message (see
pkg/dwncid.Encode) and submits it to a DWN instance via ProcessMessage,
printing the reply.

Examples:
  # Submit a RecordsWrite with its attached data
  dwn apply -f write.msg --tenant did:example:alice --data payload.bin

  # Submit a RecordsQuery (no attached data)
  dwn apply -f query.msg --tenant did:example:alice`,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringP("file", "f", "", "Signed message file, CBOR-encoded (required)")
	applyCmd.Flags().String("tenant", "", "Tenant DID the message is addressed to (required)")
	applyCmd.Flags().String("data", "", "Attached data file, for RecordsWrite")
	applyCmd.Flags().String("data-dir", "./dwn-data", "Data directory for DWN state")
	applyCmd.Flags().String("keys", "", "YAML file of known DIDs and their public keys (required)")
	_ = applyCmd.MarkFlagRequired("file")
	_ = applyCmd.MarkFlagRequired("tenant")
	_ = applyCmd.MarkFlagRequired("keys")
}

func runApply(cmd *cobra.Command, args []string) error {
	filename, _ := cmd.Flags().GetString("file")
	tenant, _ := cmd.Flags().GetString("tenant")
	dataPath, _ := cmd.Flags().GetString("data")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	keysPath, _ := cmd.Flags().GetString("keys")

	msgBytes, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read message file: %w", err)
	}
	msg, err := dwncid.Decode(msgBytes)
	if err != nil {
		return fmt.Errorf("failed to decode message: %w", err)
	}

	var data []byte
	if dataPath != "" {
		data, err = os.ReadFile(dataPath)
		if err != nil {
			return fmt.Errorf("failed to read data file: %w", err)
		}
	}

	resolver, err := loadResolver(keysPath)
	if err != nil {
		return fmt.Errorf("failed to load keys: %w", err)
	}

	d, err := dwn.Open(dataDir, resolver)
	if err != nil {
		return fmt.Errorf("failed to open dwn: %w", err)
	}
	defer d.Close()

	reply, err := d.ProcessMessage(context.Background(), tenant, msg, data)
	if err != nil {
		return fmt.Errorf("failed to process message: %w", err)
	}

	fmt.Printf("Status: %d %s\n", reply.Status.Code, reply.Status.Detail)
	if reply.Record != nil {
		cid, err := dwncid.MessageCid(reply.Record)
		if err == nil {
			fmt.Printf("Record CID: %s\n", cid)
		}
	}
	if len(reply.Entries) > 0 {
		fmt.Printf("Entries: %d\n", len(reply.Entries))
	}
	if reply.Cursor != "" {
		fmt.Printf("Cursor: %s\n", reply.Cursor)
	}
	if reply.Subscription != nil {
		fmt.Println("Subscription opened; apply does not hold it open, closing.")
		reply.Subscription.Close()
	}
	return nil
}
