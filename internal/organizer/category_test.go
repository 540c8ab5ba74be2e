package organizer

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestConflictFree(t *testing.T) {
	dir := t.TempDir()

	touch := func(name string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}

	t.Run("free path unchanged", func(t *testing.T) {
		path := filepath.Join(dir, "fresh.txt")
		if got := ConflictFree(path); got != path {
			t.Errorf("got %s, want %s", got, path)
		}
	})

	t.Run("occupied path gets counter before extension", func(t *testing.T) {
		touch("taken.txt")
		want := filepath.Join(dir, "taken_1.txt")
		if got := ConflictFree(filepath.Join(dir, "taken.txt")); got != want {
			t.Errorf("got %s, want %s", got, want)
		}
	})

	t.Run("counter advances past existing variants", func(t *testing.T) {
		touch("busy.txt")
		touch("busy_1.txt")
		touch("busy_2.txt")
		want := filepath.Join(dir, "busy_3.txt")
		if got := ConflictFree(filepath.Join(dir, "busy.txt")); got != want {
			t.Errorf("got %s, want %s", got, want)
		}
	})

	t.Run("no extension", func(t *testing.T) {
		touch("README")
		want := filepath.Join(dir, "README_1")
		if got := ConflictFree(filepath.Join(dir, "README")); got != want {
			t.Errorf("got %s, want %s", got, want)
		}
	})

	t.Run("directory collision counts too", func(t *testing.T) {
		if err := os.Mkdir(filepath.Join(dir, "folderlike"), 0755); err != nil {
			t.Fatal(err)
		}
		want := filepath.Join(dir, "folderlike_1")
		if got := ConflictFree(filepath.Join(dir, "folderlike")); got != want {
			t.Errorf("got %s, want %s", got, want)
		}
	})
}

func TestConflictFree_Properties(t *testing.T) {
	dir := t.TempDir()

	properties := gopter.NewProperties(nil)

	nameGen := gen.RegexMatch(`[a-z]{1,8}`)

	properties.Property("resolved path never collides and keeps the extension", prop.ForAll(
		func(stem string, occupied uint8) bool {
			sub, err := os.MkdirTemp(dir, "case")
			if err != nil {
				return false
			}
			// Occupy the base name plus a run of variants.
			n := int(occupied % 5)
			names := []string{stem + ".txt"}
			for i := 1; i <= n; i++ {
				names = append(names, fmt.Sprintf("%s_%d.txt", stem, i))
			}
			for _, name := range names {
				if err := os.WriteFile(filepath.Join(sub, name), nil, 0644); err != nil {
					return false
				}
			}

			got := ConflictFree(filepath.Join(sub, stem+".txt"))
			if filepath.Ext(got) != ".txt" {
				return false
			}
			if _, err := os.Stat(got); !os.IsNotExist(err) {
				return false
			}
			return got == filepath.Join(sub, fmt.Sprintf("%s_%d.txt", stem, n+1))
		},
		nameGen, gen.UInt8(),
	))

	properties.TestingRun(t)
}
