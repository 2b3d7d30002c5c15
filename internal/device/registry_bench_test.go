package device

import (
	"fmt"
	"testing"
)

// setupBenchRegistry creates a registry with n read-write devices of capacity bytes.
func setupBenchRegistry(b *testing.B, n, capacity int) *Registry {
	b.Helper()

	reg := NewRegistry(n, capacity)
	for i := 0; i < n; i++ {
		if _, err := reg.Attach(Descriptor{Identity: fmt.Sprintf("dev-%04d", i), Capacity: capacity, Permission: ReadWrite}); err != nil {
			b.Fatalf("attaching device %d: %v", i, err)
		}
	}
	return reg
}

func BenchmarkRead(b *testing.B) {
	for _, size := range []int{64, 4096, 65536} {
		b.Run(fmt.Sprintf("bytes=%d", size), func(b *testing.B) {
			reg := setupBenchRegistry(b, 1, size)
			s, _ := reg.Open(0, ModeRead)
			buf := make([]byte, size)
			b.SetBytes(int64(size))
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				_, _ = reg.Seek(s, 0, SeekStart)
				_, _ = reg.Read(s, buf)
			}
		})
	}
}

func BenchmarkWrite(b *testing.B) {
	for _, size := range []int{64, 4096, 65536} {
		b.Run(fmt.Sprintf("bytes=%d", size), func(b *testing.B) {
			reg := setupBenchRegistry(b, 1, size)
			s, _ := reg.Open(0, ModeWrite)
			buf := make([]byte, size)
			b.SetBytes(int64(size))
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				_, _ = reg.Seek(s, 0, SeekStart)
				_, _ = reg.Write(s, buf)
			}
		})
	}
}

func BenchmarkReadParallel(b *testing.B) {
	reg := setupBenchRegistry(b, 4, 4096)
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		s, _ := reg.Open(0, ModeRead)
		buf := make([]byte, 512)
		for pb.Next() {
			_, _ = reg.Seek(s, 0, SeekStart)
			_, _ = reg.Read(s, buf)
		}
	})
}

func BenchmarkAttachDetach(b *testing.B) {
	reg := NewRegistry(1, 0)
	d := Descriptor{Identity: "bench", Capacity: 1024, Permission: ReadWrite}
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		h, _ := reg.Attach(d)
		_ = reg.Detach(h)
	}
}

func BenchmarkLookup(b *testing.B) {
	reg := setupBenchRegistry(b, 5, 64)
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_, _ = reg.Lookup(Handle(i % 5))
	}
}
