package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cbergstrom/laddr/internal/store"
)

var (
	agentsFollow     bool
	agentsJSON       bool
	agentsRole       string
	agentsMinSuccess float64
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List agent execution records",
	Long: `Agents lists every agent record in the state store with lifetime
counters and success rates. With --follow it watches the store directory
and reprints an agent's record whenever it changes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		fileStore, err := store.NewFileStore(cfg.Store.Root)
		if err != nil {
			return err
		}

		agents, err := fileStore.SearchHistory(agentsRole, agentsMinSuccess)
		if err != nil {
			return err
		}

		if agentsJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(agents); err != nil {
				return err
			}
		} else {
			printAgents(agents)
		}

		if !agentsFollow {
			return nil
		}

		watcher, err := store.NewWatcher(cfg.Store.Root)
		if err != nil {
			return err
		}
		defer watcher.Close()

		fmt.Fprintf(os.Stderr, "watching %s (ctrl-c to stop)\n", cfg.Store.Root)
		for {
			select {
			case <-cmd.Context().Done():
				return nil
			case agentID, ok := <-watcher.Changes():
				if !ok {
					return nil
				}
				state, err := fileStore.GetAgentState(agentID)
				if err != nil {
					fmt.Fprintf(os.Stderr, "agent %s: %v\n", agentID, err)
					continue
				}
				printAgentLine(state)
			}
		}
	},
}

func printAgents(agents []*store.AgentState) {
	if len(agents) == 0 {
		fmt.Println("no agent records")
		return
	}
	for _, agent := range agents {
		printAgentLine(agent)
	}
}

func printAgentLine(agent *store.AgentState) {
	rate := agent.SuccessRate() * 100
	rateStr := fmt.Sprintf("%5.1f%%", rate)
	switch {
	case agent.Succeeded+agent.Failed == 0:
		rateStr = "  n/a "
	case rate >= 80:
		rateStr = color.GreenString(rateStr)
	case rate < 50:
		rateStr = color.RedString(rateStr)
	}

	role := agent.Role
	if role == "" {
		role = "-"
	}
	fmt.Printf("%-24s %-20s runs=%-4d ok=%s cost=%.4f\n",
		agent.AgentID, role, agent.TotalExecutions, rateStr, agent.CumulativeCost)
}

func init() {
	agentsCmd.Flags().BoolVar(&agentsFollow, "follow", false, "watch the store and print records as they change")
	agentsCmd.Flags().BoolVar(&agentsJSON, "json", false, "emit agent records as JSON")
	agentsCmd.Flags().StringVar(&agentsRole, "role", "", "only show agents whose role contains this substring")
	agentsCmd.Flags().Float64Var(&agentsMinSuccess, "min-success", 0, "only show agents at or above this success rate (0-1)")
}
