// Package console is the interactive line-oriented REPL used to drive a
// node by hand: submit transfers, simulate crash/recovery, and inspect
// ledger state. It is a thin adapter over the node's public API only.
package console

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ledgernode/ledgernode/src/node"
)

// Console reads commands from in and writes results to out.
type Console struct {
	node *node.Node
	in   io.Reader
	out  io.Writer
}

// New builds a Console driving n, reading commands from in and writing
// output to out.
func New(n *node.Node, in io.Reader, out io.Writer) *Console {
	return &Console{node: n, in: in, out: out}
}

// Run blocks reading and dispatching commands from in until it is closed or
// the "exit" command is entered. It never stops the node itself.
func (c *Console) Run() {
	fmt.Fprintln(c.out, "Commands: moneyTransfer <dest> <amt>, failProcess, fixProcess, printBlockchain, printBalance, exit")
	fmt.Fprintln(c.out, "Short forms: transfer, fail, recover, ledger, balances")

	scanner := bufio.NewScanner(c.in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if c.dispatch(line) {
			return
		}
	}
}

// dispatch handles one line of input, returning true if the console should
// stop reading further commands.
func (c *Console) dispatch(line string) bool {
	fields := strings.Fields(line)
	cmd := fields[0]

	switch cmd {
	case "moneyTransfer", "transfer":
		c.handleTransfer(fields)
	case "failProcess", "fail":
		c.node.Fail()
		fmt.Fprintln(c.out, "node failed")
	case "fixProcess", "recover":
		c.node.Recover()
		fmt.Fprintln(c.out, "node recovering")
	case "printBlockchain", "ledger":
		c.printLedger()
	case "printBalance", "balances":
		c.printBalances()
	case "exit":
		return true
	default:
		fmt.Fprintln(c.out, "unknown command")
	}
	return false
}

func (c *Console) handleTransfer(fields []string) {
	if len(fields) != 3 {
		fmt.Fprintln(c.out, "usage: moneyTransfer <dest> <amt>")
		return
	}
	dest, err := strconv.Atoi(fields[1])
	if err != nil {
		fmt.Fprintln(c.out, "invalid destination:", err)
		return
	}
	amt, err := strconv.Atoi(fields[2])
	if err != nil {
		fmt.Fprintln(c.out, "invalid amount:", err)
		return
	}
	if amt <= 0 {
		fmt.Fprintln(c.out, "invalid amount: must be positive")
		return
	}
	if err := c.node.SubmitTransfer(dest, amt); err != nil {
		fmt.Fprintln(c.out, "transfer failed:", err)
		return
	}
	fmt.Fprintln(c.out, "transfer proposed")
}

func (c *Console) printLedger() {
	buf, err := json.MarshalIndent(c.node.ReadLedger(), "", "  ")
	if err != nil {
		fmt.Fprintln(c.out, "error:", err)
		return
	}
	fmt.Fprintln(c.out, string(buf))
}

func (c *Console) printBalances() {
	fmt.Fprintln(c.out, c.node.ReadBalances())
}
