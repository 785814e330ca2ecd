package logger

import (
	"io"
	"log"
	"strings"
	"sync"
)

var (
	unitMu   sync.Mutex
	unitLog  *log.Logger
	unitDump bool
)

// SetUnitDumpWriter routes full analysis-unit request/response payloads to w.
// Nil disables the dump entirely.
func SetUnitDumpWriter(w io.Writer) {
	unitMu.Lock()
	defer unitMu.Unlock()
	if w == nil {
		unitLog = nil
		return
	}
	unitLog = log.New(w, "", log.LstdFlags)
}

// EnableUnitPayloadDump toggles payload sections in the unit dump.
func EnableUnitPayloadDump(enabled bool) {
	unitMu.Lock()
	unitDump = enabled
	unitMu.Unlock()
}

type unitSection struct {
	Title string
	Body  string
}

func logUnit(kind, unitID, symbol string, sections []unitSection) {
	unitMu.Lock()
	l := unitLog
	unitMu.Unlock()
	if l == nil {
		return
	}
	var b strings.Builder
	b.WriteString("[UNIT]")
	if kind != "" {
		b.WriteString("[" + kind + "]")
	}
	if unitID != "" {
		b.WriteString("[" + unitID + "]")
	}
	if symbol != "" {
		b.WriteString("[" + symbol + "]")
	}
	b.WriteString("\n")
	for _, sec := range sections {
		t := strings.TrimSpace(sec.Title)
		if t == "" {
			t = "CONTENT"
		}
		b.WriteString("--- " + t + " ---\n")
		b.WriteString(sec.Body)
		if !strings.HasSuffix(sec.Body, "\n") {
			b.WriteString("\n")
		}
	}
	b.WriteString("=====\n")
	l.Print(b.String())
}

// LogUnitRequest records the prompt/material a unit was invoked with.
func LogUnitRequest(unitID, symbol, system, user string) {
	if !dumpEnabled() {
		return
	}
	logUnit("request", unitID, symbol, []unitSection{
		{Title: "SYSTEM", Body: system},
		{Title: "USER", Body: user},
	})
}

// LogUnitResponse records a unit's raw output.
func LogUnitResponse(unitID, symbol, raw string) {
	if !dumpEnabled() {
		return
	}
	logUnit("response", unitID, symbol, []unitSection{{Title: "RAW", Body: raw}})
}

func dumpEnabled() bool {
	unitMu.Lock()
	defer unitMu.Unlock()
	return unitDump && unitLog != nil
}
