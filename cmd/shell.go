package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"chordring/node"
	"chordring/ring"
)

// runShell reads one command per line from stdin until "quit" or EOF,
// dispatching to n's public operations. Argument parsing here is
// deliberately minimal (whitespace split, no quoting, no flags) since the
// shell's own grammar is outside this module's scope.
func runShell(n *node.Node) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("ready. commands: put <key> <value> | get <key> | remove <key> | state | fingers | hash <str> | quit")

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmd := fields[0]
		args := fields[1:]

		switch cmd {
		case "put":
			handlePut(n, args)
		case "get":
			handleGet(n, args)
		case "remove":
			handleRemove(n, args)
		case "state":
			fmt.Println(formatState(n))
		case "fingers":
			fmt.Println(formatFingers(n))
		case "hash":
			handleHash(args)
		case "quit", "exit":
			if err := n.Leave(); err != nil {
				fmt.Println("error leaving ring:", err)
			}
			return
		default:
			fmt.Printf("unknown command %q\n", cmd)
		}
	}
}

func handlePut(n *node.Node, args []string) {
	if len(args) < 2 {
		fmt.Println("usage: put <key> <value>")
		return
	}
	key := args[0]
	value := strings.Join(args[1:], " ")
	ok, err := n.Put(key, value)
	if err != nil {
		fmt.Println("put failed:", err)
		return
	}
	fmt.Println(ok)
}

func handleGet(n *node.Node, args []string) {
	if len(args) != 1 {
		fmt.Println("usage: get <key>")
		return
	}
	value, found, err := n.Get(args[0])
	if err != nil {
		fmt.Println("get failed:", err)
		return
	}
	if !found {
		fmt.Println("(none)")
		return
	}
	fmt.Println(value)
}

// handleRemove deletes a key from this node's own local store. Unlike
// put/get it is not routed to whichever node owns the key -- it only
// affects the node the shell is attached to.
func handleRemove(n *node.Node, args []string) {
	if len(args) != 1 {
		fmt.Println("usage: remove <key>")
		return
	}
	fmt.Println(n.Remove(args[0]))
}

func handleHash(args []string) {
	if len(args) != 1 {
		fmt.Println("usage: hash <str>")
		return
	}
	fmt.Println(ring.HashKey(args[0]))
}

func formatState(n *node.Node) string {
	self := n.Self()
	successor := n.GetSuccessor()
	var b strings.Builder
	fmt.Fprintf(&b, "self:        %d (%s)\n", self.ID, self.Address)
	fmt.Fprintf(&b, "successor:   %d (%s)\n", successor.ID, successor.Address)
	if pred := n.GetPredecessor(); pred != nil {
		fmt.Fprintf(&b, "predecessor: %d (%s)\n", pred.ID, pred.Address)
	} else {
		fmt.Fprintf(&b, "predecessor: (none)\n")
	}
	fmt.Fprintf(&b, "store size:  %d\n", n.StoreSize())
	for _, m := range n.DumpMetrics() {
		fmt.Fprintf(&b, "security[%s]: %v\n", m.ModuleName, m.Counters)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatFingers(n *node.Node) string {
	var b strings.Builder
	for i, f := range n.Fingers() {
		if f == nil {
			fmt.Fprintf(&b, "[%d] (empty)\n", i)
			continue
		}
		fmt.Fprintf(&b, "[%d] %d (%s)\n", i, f.ID, f.Address)
	}
	return strings.TrimRight(b.String(), "\n")
}
