// zcash-txbuilder inspects v5 transactions and builds regtest demonstration
// transactions with the development proving backend.
//
// Example usage:
//
//	zcash-txbuilder network regtest
//	zcash-txbuilder decode <tx hex>
//	zcash-txbuilder address tm... test
//	zcash-txbuilder parse-uri "zcash:tm...?amount=1.5"
//	zcash-txbuilder demo 7
package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/suffix-labs/zcash-txbuilder/pkg/builder"
	"github.com/suffix-labs/zcash-txbuilder/pkg/crypto"
	"github.com/suffix-labs/zcash-txbuilder/pkg/devcrypto"
	"github.com/suffix-labs/zcash-txbuilder/pkg/params"
	"github.com/suffix-labs/zcash-txbuilder/pkg/script"
	"github.com/suffix-labs/zcash-txbuilder/pkg/sighash"
	"github.com/suffix-labs/zcash-txbuilder/pkg/transaction"
	"github.com/suffix-labs/zcash-txbuilder/pkg/zip321"
)

const version = "v0.2.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "network":
		err = cmdNetwork(os.Args[2:])
	case "decode":
		err = cmdDecode(os.Args[2:])
	case "address":
		err = cmdAddress(os.Args[2:])
	case "parse-uri":
		err = cmdParseURI(os.Args[2:])
	case "demo":
		err = cmdDemo(os.Args[2:])
	case "version":
		fmt.Println("zcash-txbuilder", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`zcash-txbuilder - multi-pool Zcash transaction builder

Usage:
  zcash-txbuilder <command> [arguments]

Commands:
  network <name|file.yaml>     Show a network's upgrades and branch IDs
  decode <hex>                 Summarize a serialized v5 transaction
  address <t-addr> [network]   Show the locking script of a transparent address
  parse-uri <uri>              Parse a ZIP 321 payment request
  demo [seed]                  Build a regtest transparent-to-Orchard transaction
  version                      Show version information
  help                         Show this help message`)
}

// loadNetwork accepts a built-in name or a path to a YAML definition.
func loadNetwork(arg string) (*params.Network, error) {
	if strings.HasSuffix(arg, ".yaml") || strings.HasSuffix(arg, ".yml") {
		return params.LoadNetwork(arg)
	}
	return params.ByName(arg)
}

func cmdNetwork(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: zcash-txbuilder network <name|file.yaml>")
	}
	net, err := loadNetwork(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Network:   %s (coin type %d)\n", net.Name, net.CoinType)
	fmt.Printf("Prefixes:  p2pkh %04x, p2sh %04x\n", uint32(net.PubKeyHashPrefix), uint32(net.ScriptHashPrefix))
	fmt.Println("Upgrades:")
	for _, u := range net.Upgrades {
		fmt.Printf("  %-12s %08x  height %d\n", u.Name, uint32(u.BranchID), u.ActivationHeight)
	}
	return nil
}

func cmdDecode(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: zcash-txbuilder decode <hex>")
	}
	raw, err := hex.DecodeString(strings.TrimSpace(args[0]))
	if err != nil {
		return fmt.Errorf("transaction must be hex: %w", err)
	}
	tx, err := transaction.Parse(raw)
	if err != nil {
		return err
	}
	printTx(tx)
	return nil
}

func printTx(tx *transaction.Transaction) {
	id := sighash.TxID(tx)
	for i, j := 0, len(id)-1; i < j; i, j = i+1, j-1 {
		id[i], id[j] = id[j], id[i]
	}
	fmt.Printf("TxID:        %x\n", id)
	fmt.Printf("Version:     %d (group %08x, branch %08x)\n", tx.Version, tx.VersionGroupID, tx.ConsensusBranchID)
	fmt.Printf("Expiry:      %d\n", tx.ExpiryHeight)
	fmt.Printf("Transparent: %d in, %d out\n", len(tx.Inputs), len(tx.Outputs))
	for i, out := range tx.Outputs {
		fmt.Printf("  out %d: %s %x\n", i, out.Value, out.ScriptPubKey)
	}
	fmt.Printf("Sprout:      %d joinsplits\n", len(tx.JoinSplits))
	for i, js := range tx.JoinSplits {
		fmt.Printf("  js %d: vpub_old %s, vpub_new %s\n", i, js.VPubOld, js.VPubNew)
	}
	if tx.Sapling != nil {
		fmt.Printf("Sapling:     %d spends, %d outputs, balance %s\n",
			len(tx.Sapling.Spends), len(tx.Sapling.Outputs), tx.Sapling.ValueBalance)
	}
	if tx.Orchard != nil {
		fmt.Printf("Orchard:     %d actions, flags %02x, balance %s\n",
			len(tx.Orchard.Actions), tx.Orchard.Flags, tx.Orchard.ValueBalance)
	}
}

func cmdAddress(args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("usage: zcash-txbuilder address <t-addr> [network]")
	}
	name := "main"
	if len(args) == 2 {
		name = args[1]
	}
	net, err := loadNetwork(name)
	if err != nil {
		return err
	}
	addr, err := script.DecodeAddress(args[0], net)
	if err != nil {
		return err
	}
	kind := "p2pkh"
	if addr.Kind == script.ScriptHash {
		kind = "p2sh"
	}
	fmt.Printf("Type:   %s\n", kind)
	fmt.Printf("Hash:   %x\n", addr.Hash)
	fmt.Printf("Script: %x\n", addr.Script())
	return nil
}

func cmdParseURI(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: zcash-txbuilder parse-uri <uri>")
	}
	req, err := zip321.Parse(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Payments: %d\n\n", len(req.Payments))
	for i, p := range req.Payments {
		fmt.Printf("Payment %d:\n", i+1)
		fmt.Printf("  Address: %s\n", p.Address)
		if p.HasAmount {
			fmt.Printf("  Amount:  %s\n", p.Amount)
		} else {
			fmt.Println("  Amount:  (user specified)")
		}
		if len(p.Memo) > 0 {
			fmt.Printf("  Memo:    %q\n", p.Memo)
		}
		if p.Label != "" {
			fmt.Printf("  Label:   %s\n", p.Label)
		}
		if p.Message != "" {
			fmt.Printf("  Message: %s\n", p.Message)
		}
		fmt.Println()
	}
	fmt.Printf("Re-encoded URI:\n%s\n", req.Encode())
	return nil
}

// cmdDemo spends one fabricated regtest coin into an Orchard note with
// Orchard change, using the development backend. The same seed always
// yields the same transaction.
func cmdDemo(args []string) error {
	seed := byte(1)
	if len(args) > 0 {
		v, err := strconv.ParseUint(args[0], 10, 8)
		if err != nil {
			return fmt.Errorf("seed must be 0-255: %w", err)
		}
		seed = byte(v)
	}

	eng := devcrypto.NewSeeded([32]byte{seed})
	secret := [32]byte{seed, 1}
	key, err := crypto.PrivateKeyFromBytes(secret[:])
	if err != nil {
		return err
	}
	keys := crypto.NewMemoryKeyStore()
	from := script.Address{Kind: script.PubKeyHash, Hash: keys.AddKey(key)}
	_, to := eng.Orchard.Key([32]byte{seed, 2})
	changeSK, change := eng.Orchard.Key([32]byte{seed, 3})
	fvk, err := eng.Orchard.FullViewingKey(changeSK)
	if err != nil {
		return err
	}
	ovk, err := eng.Orchard.OutgoingViewingKey(fvk)
	if err != nil {
		return err
	}

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	b, err := builder.NewBuilder(params.Regtest, 200, &[32]byte{seed},
		builder.WithKeyStore(keys),
		builder.WithOrchardBackend(eng.Orchard),
		builder.WithRandomness(devcrypto.SeededReader([32]byte{seed, 4})),
		builder.WithLogger(log),
	)
	if err != nil {
		return err
	}
	if err := b.AddTransparentInput(transaction.OutPoint{TxID: [32]byte{seed}}, from.Script(), transaction.Coin); err != nil {
		return err
	}
	if err := b.AddOrchardOutput(&ovk, to, uint64(transaction.Coin/2), transaction.NoMemo()); err != nil {
		return err
	}
	if err := b.SendChangeTo(change, &ovk); err != nil {
		return err
	}

	res := b.Build()
	if res.IsError() {
		return res.Err()
	}
	tx := res.Tx()
	raw, err := tx.Serialize()
	if err != nil {
		return err
	}
	fmt.Printf("From:        %s\n", from.Encode(params.Regtest))
	printTx(tx)
	fmt.Printf("Hex:         %x\n", raw)
	return nil
}
