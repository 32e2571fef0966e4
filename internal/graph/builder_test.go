package graph

import (
	"strings"
	"testing"
)

// TestBuilderAdd tests operation declaration validation.
func TestBuilderAdd(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(b *Builder) error
		wantErr     bool
		errContains string
	}{
		{
			name: "valid operation",
			setup: func(b *Builder) error {
				return b.Add("build", "make build", 1)
			},
			wantErr: false,
		},
		{
			name: "empty name",
			setup: func(b *Builder) error {
				return b.Add("", "true", 1)
			},
			wantErr:     true,
			errContains: "empty",
		},
		{
			name: "duplicate name",
			setup: func(b *Builder) error {
				if err := b.Add("build", "true", 1); err != nil {
					return err
				}
				return b.Add("build", "true", 1)
			},
			wantErr:     true,
			errContains: "already exists",
		},
		{
			name: "negative weight",
			setup: func(b *Builder) error {
				return b.Add("build", "true", -3)
			},
			wantErr:     true,
			errContains: "negative weight",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder()
			err := tt.setup(b)

			if (err != nil) != tt.wantErr {
				t.Errorf("error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if err != nil && !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("error %q doesn't contain %q", err.Error(), tt.errContains)
			}
		})
	}
}

// TestBuilderBuild tests name resolution and edge wiring.
func TestBuilderBuild(t *testing.T) {
	t.Run("wires mutual edges", func(t *testing.T) {
		b := NewBuilder()
		b.Add("A", "true", 1)
		b.Add("B", "true", 1, "A")

		ops, err := b.Build()
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		if len(ops) != 2 {
			t.Fatalf("Build() returned %d operations, want 2", len(ops))
		}

		a, _ := b.Get("A")
		opB, _ := b.Get("B")
		if _, ok := opB.Dependencies[a]; !ok {
			t.Error("B does not depend on A after Build")
		}
		if _, ok := a.Consumers[opB]; !ok {
			t.Error("A does not list B as consumer after Build")
		}
	})

	t.Run("missing dependency", func(t *testing.T) {
		b := NewBuilder()
		b.Add("A", "true", 1, "nonexistent")

		_, err := b.Build()
		if err == nil {
			t.Fatal("Build() error = nil, want missing dependency error")
		}
		if !strings.Contains(err.Error(), "nonexistent") {
			t.Errorf("error %q doesn't name the missing dependency", err.Error())
		}
	})

	t.Run("zero weight defaults to one", func(t *testing.T) {
		b := NewBuilder()
		b.Add("A", "true", 0)

		op, _ := b.Get("A")
		if op.Weight != 1 {
			t.Errorf("Weight = %d, want 1", op.Weight)
		}
	})

	t.Run("preserves declaration order", func(t *testing.T) {
		b := NewBuilder()
		b.Add("C", "true", 1)
		b.Add("A", "true", 1)
		b.Add("B", "true", 1)

		ops, err := b.Build()
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}

		want := []string{"C", "A", "B"}
		for i, op := range ops {
			if op.Name != want[i] {
				t.Errorf("ops[%d] = %s, want %s", i, op.Name, want[i])
			}
		}
	})
}

// TestTopologicalOrder tests the dependency-respecting listing.
func TestTopologicalOrder(t *testing.T) {
	t.Run("dependencies come first", func(t *testing.T) {
		b := NewBuilder()
		b.Add("deploy", "true", 1, "test")
		b.Add("test", "true", 1, "build")
		b.Add("build", "true", 1)

		order, err := b.TopologicalOrder()
		if err != nil {
			t.Fatalf("TopologicalOrder() error = %v", err)
		}

		pos := make(map[string]int)
		for i, name := range order {
			pos[name] = i
		}
		if pos["build"] > pos["test"] || pos["test"] > pos["deploy"] {
			t.Errorf("order %v does not respect dependencies", order)
		}
	})

	t.Run("disconnected components all present", func(t *testing.T) {
		b := NewBuilder()
		b.Add("A", "true", 1)
		b.Add("B", "true", 1, "A")
		b.Add("C", "true", 1)
		b.Add("D", "true", 1, "C")

		order, err := b.TopologicalOrder()
		if err != nil {
			t.Fatalf("TopologicalOrder() error = %v", err)
		}
		if len(order) != 4 {
			t.Errorf("order has %d entries, want 4: %v", len(order), order)
		}
	})

	t.Run("cycle is an error", func(t *testing.T) {
		b := NewBuilder()
		b.Add("A", "true", 1, "B")
		b.Add("B", "true", 1, "A")

		if _, err := b.TopologicalOrder(); err == nil {
			t.Fatal("TopologicalOrder() error = nil, want cycle error")
		}
	})
}
