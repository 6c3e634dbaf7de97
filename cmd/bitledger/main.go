// Command bitledger is the node's command-line entry point: wallet
// management, chain bootstrap and inspection, transaction submission, and
// the long-running network server, all operating against one node's
// configured database.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/vrecan/death/v3"

	"github.com/nodeforge/bitledger/internal/chain"
	"github.com/nodeforge/bitledger/internal/config"
	"github.com/nodeforge/bitledger/internal/p2p"
	"github.com/nodeforge/bitledger/internal/store"
	"github.com/nodeforge/bitledger/internal/wallet"
)

func printUsage() {
	fmt.Println("Usage:")
	fmt.Println(" getbalance -address ADDRESS - get the balance of an address")
	fmt.Println(" createblockchain -address ADDRESS - create the chain, paying the genesis subsidy to ADDRESS")
	fmt.Println(" printchain - print every block from the tip back to genesis")
	fmt.Println(" send -from FROM -to TO -amount AMOUNT [-mine] - send coins; -mine mines the transaction locally instead of broadcasting it")
	fmt.Println(" createwallet - create a new wallet in this node's registry")
	fmt.Println(" listaddresses - list the addresses in this node's wallet registry")
	fmt.Println(" reindexutxo - rebuild the UTXO index from the chain")
	fmt.Println(" startnode [-miner ADDRESS] - start the network server; -miner enables mining to ADDRESS")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg := config.Load()

	getBalanceCmd := flag.NewFlagSet("getbalance", flag.ExitOnError)
	createBlockchainCmd := flag.NewFlagSet("createblockchain", flag.ExitOnError)
	sendCmd := flag.NewFlagSet("send", flag.ExitOnError)
	printChainCmd := flag.NewFlagSet("printchain", flag.ExitOnError)
	createWalletCmd := flag.NewFlagSet("createwallet", flag.ExitOnError)
	listAddressesCmd := flag.NewFlagSet("listaddresses", flag.ExitOnError)
	reindexUTXOCmd := flag.NewFlagSet("reindexutxo", flag.ExitOnError)
	startNodeCmd := flag.NewFlagSet("startnode", flag.ExitOnError)

	getBalanceAddress := getBalanceCmd.String("address", "", "wallet address to get the balance of")
	createBlockchainAddress := createBlockchainCmd.String("address", "", "wallet address to receive the genesis subsidy")
	sendFrom := sendCmd.String("from", "", "source wallet address")
	sendTo := sendCmd.String("to", "", "destination wallet address")
	sendAmount := sendCmd.Int("amount", 0, "amount to send")
	sendMine := sendCmd.Bool("mine", false, "mine the transaction locally instead of broadcasting it")
	startNodeMiner := startNodeCmd.String("miner", "", "enable mining mode, paying rewards to ADDRESS")

	var err error
	switch os.Args[1] {
	case "getbalance":
		err = getBalanceCmd.Parse(os.Args[2:])
	case "createblockchain":
		err = createBlockchainCmd.Parse(os.Args[2:])
	case "send":
		err = sendCmd.Parse(os.Args[2:])
	case "printchain":
		err = printChainCmd.Parse(os.Args[2:])
	case "createwallet":
		err = createWalletCmd.Parse(os.Args[2:])
	case "listaddresses":
		err = listAddressesCmd.Parse(os.Args[2:])
	case "reindexutxo":
		err = reindexUTXOCmd.Parse(os.Args[2:])
	case "startnode":
		err = startNodeCmd.Parse(os.Args[2:])
	default:
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fatalf("%v", err)
	}

	switch {
	case getBalanceCmd.Parsed():
		if *getBalanceAddress == "" {
			getBalanceCmd.Usage()
			os.Exit(1)
		}
		runGetBalance(cfg, *getBalanceAddress)

	case createBlockchainCmd.Parsed():
		if *createBlockchainAddress == "" {
			createBlockchainCmd.Usage()
			os.Exit(1)
		}
		runCreateBlockchain(cfg, *createBlockchainAddress)

	case printChainCmd.Parsed():
		runPrintChain(cfg)

	case createWalletCmd.Parsed():
		runCreateWallet(cfg)

	case listAddressesCmd.Parsed():
		runListAddresses(cfg)

	case reindexUTXOCmd.Parsed():
		runReindexUTXO(cfg)

	case sendCmd.Parsed():
		if *sendFrom == "" || *sendTo == "" || *sendAmount <= 0 {
			sendCmd.Usage()
			os.Exit(1)
		}
		runSend(cfg, *sendFrom, *sendTo, *sendAmount, *sendMine)

	case startNodeCmd.Parsed():
		runStartNode(cfg, *startNodeMiner)
	}
}

func walletRegistryPath(cfg *config.Config) string {
	name := "wallets_" + strings.NewReplacer(":", "_", ".", "-").Replace(cfg.NodeAddress) + ".dat"
	return filepath.Join(filepath.Dir(cfg.DBPath), name)
}

func openRegistry(cfg *config.Config) *wallet.Registry {
	reg, err := wallet.LoadRegistry(walletRegistryPath(cfg))
	if err != nil {
		fatalf("load wallet registry: %v", err)
	}
	return reg
}

func openStore(cfg *config.Config) *store.Store {
	s, err := store.Open(cfg.DBPath)
	if err != nil {
		fatalf("open chain store: %v", err)
	}
	return s
}

func runCreateWallet(cfg *config.Config) {
	reg := openRegistry(cfg)
	address, err := reg.CreateWallet()
	if err != nil {
		fatalf("create wallet: %v", err)
	}
	fmt.Printf("New wallet created with address: %s\n", address)
}

func runListAddresses(cfg *config.Config) {
	reg := openRegistry(cfg)
	for _, address := range reg.Addresses() {
		fmt.Println(address)
	}
}

func runCreateBlockchain(cfg *config.Config, address string) {
	if !wallet.Validate(address) {
		fatalf("invalid address: %s", address)
	}

	s := openStore(cfg)
	defer s.Close()

	genesis, err := s.CreateGenesis(address, time.Now().Unix())
	if err != nil {
		fatalf("create blockchain: %v", err)
	}

	utxo := store.NewUTXOIndex(s)
	if err := utxo.Update(genesis); err != nil {
		fatalf("index genesis block: %v", err)
	}
	fmt.Println("Finished creating blockchain!")
}

func runPrintChain(cfg *config.Config) {
	s := openStore(cfg)
	defer s.Close()

	it, err := s.Iterator()
	if err != nil {
		fatalf("print chain: %v", err)
	}
	for {
		block, err := it.Next()
		if err != nil {
			fatalf("print chain: %v", err)
		}

		fmt.Printf("Height: %d\n", block.Height)
		fmt.Printf("Prev. hash: %s\n", block.Header.PrevBlockHash)
		fmt.Printf("Hash: %s\n", block.Hash)
		pow := chain.NewProofOfWork(block)
		fmt.Printf("PoW valid: %t\n", pow.Validate())
		for _, tx := range block.Transactions {
			fmt.Printf("Transaction: %x\n", tx.ID)
		}
		fmt.Println()

		if block.Header.PrevBlockHash == "None" {
			break
		}
	}
}

func runGetBalance(cfg *config.Config, address string) {
	if !wallet.Validate(address) {
		fatalf("invalid address: %s", address)
	}

	s := openStore(cfg)
	defer s.Close()
	utxo := store.NewUTXOIndex(s)

	pubKeyHash, err := wallet.PubKeyHashFromAddress(address)
	if err != nil {
		fatalf("decode address: %v", err)
	}

	outs, err := utxo.FindUTXO(pubKeyHash)
	if err != nil {
		fatalf("get balance: %v", err)
	}

	balance := 0
	for _, out := range outs {
		balance += int(out.Value)
	}
	fmt.Printf("Balance of %s: %d\n", address, balance)
}

func runSend(cfg *config.Config, from, to string, amount int, mineNow bool) {
	if !wallet.Validate(from) {
		fatalf("invalid from address: %s", from)
	}
	if !wallet.Validate(to) {
		fatalf("invalid to address: %s", to)
	}

	s := openStore(cfg)
	defer s.Close()
	utxo := store.NewUTXOIndex(s)

	reg := openRegistry(cfg)
	w, ok := reg.Get(from)
	if !ok {
		fatalf("no wallet for address %s in this node's registry", from)
	}

	tx, err := chain.NewTransaction(w, to, amount, utxo, s)
	if err != nil {
		fatalf("build transaction: %v", err)
	}

	if mineNow {
		coinbase, err := chain.NewCoinbaseTx(from)
		if err != nil {
			fatalf("mine transaction: %v", err)
		}
		block, err := s.MineBlock([]*chain.Transaction{coinbase, tx}, time.Now().Unix())
		if err != nil {
			fatalf("mine transaction: %v", err)
		}
		if err := utxo.Update(block); err != nil {
			fatalf("index mined block: %v", err)
		}
	} else {
		srv := p2p.NewServer(cfg, s, utxo)
		srv.BroadcastTx(tx)
		fmt.Println("Sent tx")
	}

	fmt.Println("Success!")
}

func runReindexUTXO(cfg *config.Config) {
	s := openStore(cfg)
	defer s.Close()

	utxo := store.NewUTXOIndex(s)
	if err := utxo.Reindex(); err != nil {
		fatalf("reindex: %v", err)
	}

	count, err := utxo.CountTransactions()
	if err != nil {
		fatalf("reindex: %v", err)
	}
	fmt.Printf("Done! There are %d transactions in the UTXO set.\n", count)
}

func runStartNode(cfg *config.Config, minerAddress string) {
	if minerAddress != "" {
		if !wallet.Validate(minerAddress) {
			fatalf("invalid miner address: %s", minerAddress)
		}
		cfg.MiningAddress = minerAddress
		fmt.Println("Mining is on. Reward address:", minerAddress)
	}

	s := openStore(cfg)
	utxo := store.NewUTXOIndex(s)
	srv := p2p.NewServer(cfg, s, utxo)

	go closeStoreOnSignal(s)

	fmt.Printf("Starting node %s\n", cfg.NodeAddress)
	if err := srv.ListenAndServe(); err != nil {
		fatalf("%v", err)
	}
}

// closeStoreOnSignal gracefully shuts down the database on process
// termination, mirroring the reference implementation's CloseDB.
func closeStoreOnSignal(s *store.Store) {
	d := death.NewDeath(syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	d.WaitForDeathWithFunc(func() {
		defer os.Exit(0)
		s.Close()
	})
}
