package banner

import (
	"fmt"
	"io"
	"strings"

	"p2pmessage/pkg/config"
)

const banner = `
 ____  ____  ____                                          
|  _ \|___ \|  _ \ _ __ ___   ___  ___ ___  __ _  __ _  ___ 
| |_) | __) | |_) | '_ ` + "`" + ` _ \ / _ \/ __/ __|/ _` + "`" + ` |/ _` + "`" + ` |/ _ \
|  __/ / __/|  __/| | | | | |  __/\__ \__ \ (_| | (_| |  __/
|_|   |_____|_|   |_| |_| |_|\___||___/___/\__,_|\__, |\___|
                                                 |___/      
`

// PrintWithEff prints the banner and a readiness summary for the effective config.
func PrintWithEff(w io.Writer, eff config.EffectiveConfigResult, agent string, version string) {
	addr := eff.Addr
	if addr == "" && eff.Config != nil {
		addr = eff.Config.Addr()
	}
	src := eff.Source
	if src == "" {
		src = "defaults"
	}

	fmt.Fprint(w, banner)
	fmt.Fprintln(w, "== Node =========================================================")
	fmt.Fprintf(w, "Agent:    %s\n", agent)
	fmt.Fprintf(w, "Listen:   %s\n", addr)
	fmt.Fprintf(w, "Data:     %s\n", eff.DBPath)
	if version != "" {
		fmt.Fprintf(w, "Version:  %s\n", version)
	}
	fmt.Fprintf(w, "Config:   %s\n", src)

	if eff.Config == nil {
		return
	}
	cfg := eff.Config

	fmt.Fprintln(w, "\n== Checks =======================================================")
	if n := len(cfg.Security.APIKeys); n > 0 {
		fmt.Fprintf(w, "- Local API keys: OK (%d)\n", n)
	} else {
		fmt.Fprintln(w, "- Local API keys: none (local API is open, bind to loopback)")
	}

	if n := len(cfg.Transport.Peers); n > 0 {
		fmt.Fprintf(w, "- Peers: %d known\n", n)
	} else {
		fmt.Fprintln(w, "- Peers: none configured (sends will fail as unreachable)")
	}

	dsn := cfg.StoreDSN(eff.DBPath + "/store")
	if scheme, _, ok := strings.Cut(dsn, "://"); ok {
		fmt.Fprintf(w, "- Log backend: %s\n", scheme)
	}
	if !cfg.SyncWrites() {
		fmt.Fprintln(w, "- Sync writes: disabled (appends may be lost on crash)")
	}

	if cfg.Events.Enabled {
		fmt.Fprintf(w, "- Event stream: ws://%s/v1/events\n", cfg.Events.Address)
	} else {
		fmt.Fprintln(w, "- Event stream: disabled")
	}

	if cfg.Maintenance.Enabled {
		fmt.Fprintf(w, "- Maintenance: enabled (cron=%s)\n", cfg.Maintenance.Cron)
	} else {
		fmt.Fprintln(w, "- Maintenance: disabled")
	}
	fmt.Fprintln(w)
}
