package tracing

import "testing"

func TestSetup_DisabledWithoutKeys(t *testing.T) {
	t.Parallel()

	handler, flush, ok := Setup(Config{PublicKey: "pk"})
	if ok || handler != nil {
		t.Fatal("expected tracing disabled when the secret key is missing")
	}
	flush() // must be safe to call
}

func TestSetup_Enabled(t *testing.T) {
	t.Parallel()

	handler, flush, ok := Setup(Config{PublicKey: "pk", SecretKey: "sk", Host: "http://127.0.0.1:1"})
	if !ok || handler == nil || flush == nil {
		t.Fatal("expected tracing enabled with both keys")
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("LANGFUSE_HOST", "https://cloud.langfuse.com")
	t.Setenv("LANGFUSE_PUBLIC_KEY", "pk")
	t.Setenv("LANGFUSE_SECRET_KEY", "")

	cfg := ConfigFromEnv()
	if cfg.Host != "https://cloud.langfuse.com" || cfg.Enabled() {
		t.Errorf("unexpected config %+v (enabled=%v)", cfg, cfg.Enabled())
	}
}
