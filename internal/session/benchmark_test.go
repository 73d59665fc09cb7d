package session

import (
	"fmt"
	"testing"
)

func BenchmarkConversation_Save(b *testing.B) {
	sizes := []int{10, 100, 1000}

	for _, n := range sizes {
		b.Run(fmt.Sprintf("Entries_%d", n), func(b *testing.B) {
			dir := b.TempDir()
			mgr := NewManager(dir)
			conv := mgr.GetOrCreate("bench-save")

			for i := 0; i < n; i++ {
				conv.Append("user", "test query content", "")
			}

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				// Save rewrites the whole transcript file.
				if err := mgr.Save(conv); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
