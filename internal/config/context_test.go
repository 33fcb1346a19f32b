package config

import "testing"

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestLoadAppliesEnvOverDefault(t *testing.T) {
	c, err := Load("", []string{"CONDA_OFFLINE=true", "CONDA_CHANNELS=conda-forge,defaults"})
	if err != nil {
		t.Fatal(err)
	}
	if !c.Offline {
		t.Error("CONDA_OFFLINE=true should set Offline")
	}
	want := []string{"conda-forge", "defaults"}
	if len(c.Channels) != len(want) || c.Channels[0] != want[0] || c.Channels[1] != want[1] {
		t.Errorf("Channels = %v, want %v", c.Channels, want)
	}
}

func TestLoadRejectsBadEnum(t *testing.T) {
	c := Default()
	c.ChannelPriority = "bogus"
	if err := c.Validate(); err == nil {
		t.Error("expected validation error for bogus channel_priority")
	}
}

func TestLoadMissingYAMLIsNotError(t *testing.T) {
	if _, err := Load("/nonexistent/conda-core-config.yaml", nil); err != nil {
		t.Fatalf("missing yaml file should be tolerated: %v", err)
	}
}
