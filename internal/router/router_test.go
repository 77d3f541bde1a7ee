package router

import (
	"testing"

	"github.com/secondbrain/recall/pkg/types"
)

func allAvailable() map[string]string {
	return map[string]string{"mem0": StatusAvailable, "supabase": StatusAvailable, "graphiti": StatusAvailable}
}

func defaultFlags() map[string]bool {
	return map[string]bool{"mem0_enabled": true, "supabase_enabled": true, "graphiti_enabled": false}
}

func TestRoute_Modes(t *testing.T) {
	t.Run("Given conversation mode with mem0 available Then selects mem0 and skips external rerank", func(t *testing.T) {
		decision := Route(types.RetrievalRequest{Mode: types.ModeConversation}, allAvailable(), defaultFlags())

		if decision.Provider != "mem0" {
			t.Errorf("expected mem0, got %q", decision.Provider)
		}
		if !decision.Options.SkipExternalRerank {
			t.Error("mem0 selection must skip external rerank")
		}
	})

	t.Run("Given conversation mode with mem0 unavailable Then falls to supabase with rerank on", func(t *testing.T) {
		status := allAvailable()
		status["mem0"] = StatusUnavailable

		decision := Route(types.RetrievalRequest{Mode: types.ModeConversation}, status, defaultFlags())

		if decision.Provider != "supabase" {
			t.Errorf("expected supabase, got %q", decision.Provider)
		}
		if decision.Options.SkipExternalRerank {
			t.Error("supabase selection must not skip external rerank")
		}
	})

	t.Run("Given empty mode Then treated as conversation", func(t *testing.T) {
		decision := Route(types.RetrievalRequest{}, allAvailable(), defaultFlags())

		if decision.Provider != "mem0" {
			t.Errorf("expected mem0, got %q", decision.Provider)
		}
	})

	t.Run("Given fast mode Then fixed priority order applies", func(t *testing.T) {
		status := allAvailable()
		status["mem0"] = StatusUnavailable
		flags := defaultFlags()
		flags["graphiti_enabled"] = true

		decision := Route(types.RetrievalRequest{Mode: types.ModeFast}, status, flags)

		if decision.Provider != "supabase" {
			t.Errorf("expected supabase by priority, got %q", decision.Provider)
		}
	})
}

func TestRoute_OverrideAndFlags(t *testing.T) {
	t.Run("Given enabled provider override Then override wins", func(t *testing.T) {
		decision := Route(types.RetrievalRequest{Mode: types.ModeConversation, ProviderOverride: "supabase"}, allAvailable(), defaultFlags())

		if decision.Provider != "supabase" {
			t.Errorf("expected supabase override, got %q", decision.Provider)
		}
	})

	t.Run("Given override naming disabled provider Then normal selection applies", func(t *testing.T) {
		decision := Route(types.RetrievalRequest{Mode: types.ModeConversation, ProviderOverride: "graphiti"}, allAvailable(), defaultFlags())

		if decision.Provider != "mem0" {
			t.Errorf("expected mem0 via normal selection, got %q", decision.Provider)
		}
	})

	t.Run("Given all providers disabled Then provider none", func(t *testing.T) {
		flags := map[string]bool{"mem0_enabled": false, "supabase_enabled": false, "graphiti_enabled": false}

		decision := Route(types.RetrievalRequest{Mode: types.ModeConversation}, allAvailable(), flags)

		if decision.Provider != ProviderNone {
			t.Errorf("expected none, got %q", decision.Provider)
		}
	})

	t.Run("Given all providers unavailable Then provider none", func(t *testing.T) {
		status := map[string]string{"mem0": StatusUnavailable, "supabase": StatusUnavailable}

		decision := Route(types.RetrievalRequest{Mode: types.ModeConversation}, status, defaultFlags())

		if decision.Provider != ProviderNone {
			t.Errorf("expected none, got %q", decision.Provider)
		}
	})

	t.Run("Given only degraded providers Then degraded provider still selected", func(t *testing.T) {
		status := map[string]string{"mem0": StatusDegraded, "supabase": StatusUnavailable}

		decision := Route(types.RetrievalRequest{Mode: types.ModeConversation}, status, defaultFlags())

		if decision.Provider != "mem0" {
			t.Errorf("expected degraded mem0 via fallback, got %q", decision.Provider)
		}
	})
}

func TestRoute_Determinism(t *testing.T) {
	t.Run("Given identical inputs When routed repeatedly Then identical decisions", func(t *testing.T) {
		req := types.RetrievalRequest{Query: "q", Mode: types.ModeFast}
		status := allAvailable()
		flags := defaultFlags()
		flags["graphiti_enabled"] = true

		first := Route(req, status, flags)
		for i := 0; i < 100; i++ {
			again := Route(req, status, flags)
			if again != first {
				t.Fatalf("routing diverged on iteration %d: %+v vs %+v", i, first, again)
			}
		}
	})

	t.Run("Given every mode with all providers healthy Then selection follows priority list", func(t *testing.T) {
		flags := defaultFlags()
		flags["graphiti_enabled"] = true

		for _, mode := range []string{types.ModeFast, types.ModeAccurate, types.ModeConversation} {
			decision := Route(types.RetrievalRequest{Mode: mode}, allAvailable(), flags)
			if decision.Provider != "mem0" {
				t.Errorf("mode %s: expected mem0 first by priority, got %q", mode, decision.Provider)
			}
		}
	})
}

func TestEnabledProviders(t *testing.T) {
	t.Run("Given no flags Then defaults enable mem0 and supabase only", func(t *testing.T) {
		enabled := EnabledProviders(map[string]bool{})

		if len(enabled) != 2 || enabled[0] != "mem0" || enabled[1] != "supabase" {
			t.Errorf("unexpected enabled set %v", enabled)
		}
	})

	t.Run("Given graphiti enabled Then appears last in priority order", func(t *testing.T) {
		enabled := EnabledProviders(map[string]bool{"graphiti_enabled": true})

		if len(enabled) != 3 || enabled[2] != "graphiti" {
			t.Errorf("unexpected enabled set %v", enabled)
		}
	})
}
