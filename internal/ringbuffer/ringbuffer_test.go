package ringbuffer

import (
	"sync"
	"testing"
)

func TestRingBuffer_ConcurrentReadWrite(t *testing.T) {
	// Use a large number of samples to ensure goroutines have to wait for each other,
	// forcing the wait conditions in Read and Write to be exercised.
	const totalSamples = 200000
	const bufferSize = 8192
	const writeChunkSize = 256
	const readChunkSize = 192 // Use different, non-aligned chunk sizes to stress test the logic.

	rb := New[complex64](bufferSize)

	// Generate the source data that the writer will send.
	// Using sequential real parts makes it easy to verify correctness later.
	sourceData := make([]complex64, totalSamples)
	for i := 0; i < totalSamples; i++ {
		sourceData[i] = complex(float32(i), float32(-i))
	}

	// This slice will hold the data the reader receives.
	// It's protected by a mutex because it's written to from the reader goroutine.
	destData := make([]complex64, 0, totalSamples)
	var destMutex sync.Mutex

	var wg sync.WaitGroup
	wg.Add(2)

	// --- Writer Goroutine ---
	go func() {
		defer wg.Done()
		writtenCount := 0
		for writtenCount < totalSamples {
			end := writtenCount + writeChunkSize
			if end > totalSamples {
				end = totalSamples
			}
			chunk := sourceData[writtenCount:end]
			rb.Write(chunk)
			writtenCount = end
		}
		// Signal that the writer is done.
		rb.Close()
	}()

	// --- Reader Goroutine ---
	go func() {
		defer wg.Done()
		readCount := 0
		for readCount < totalSamples {
			chunk := rb.Read(readChunkSize)
			// If the chunk is nil, the buffer is closed and empty.
			if chunk == nil {
				break
			}

			destMutex.Lock()
			destData = append(destData, chunk...)
			destMutex.Unlock()

			readCount += len(chunk)
		}
	}()

	// Wait for both the reader and writer to finish their work.
	wg.Wait()

	// --- Verification ---
	if len(destData) != totalSamples {
		t.Fatalf("Data loss detected: expected %d samples, but got %d", totalSamples, len(destData))
	}

	for i := 0; i < totalSamples; i++ {
		if sourceData[i] != destData[i] {
			t.Fatalf("Data corruption at index %d: expected %v, but got %v", i, sourceData[i], destData[i])
		}
	}
}

func TestRingBuffer_ReadAfterCloseDrainsRemainder(t *testing.T) {
	rb := New[complex64](16)
	rb.Write([]complex64{1, 2, 3})
	rb.Close()

	got := rb.Read(10)
	if len(got) != 3 {
		t.Fatalf("expected 3 remaining samples after close, got %d", len(got))
	}

	if rb.Read(1) != nil {
		t.Fatalf("expected nil read from closed, empty buffer")
	}
}
