package main

import (
	"crypto/rand"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ppopth/fountain/codec"
)

// BenchmarkResult stores timing data for encoder and decoder operations
type BenchmarkResult struct {
	MessageSize int           `json:"message_size"`
	BlockSize   int           `json:"block_size"`
	NumBlocks   int           `json:"num_blocks"` // Source blocks per message
	Loss        float64       `json:"loss"`       // Fraction of blocks dropped before decoding
	Iterations  int           `json:"iterations"`
	NewEncoder  time.Duration `json:"new_encoder_ns"` // Average time to create an encoder
	Encode      time.Duration `json:"encode_ns"`      // Average time to encode one block
	Decode      time.Duration `json:"decode_ns"`      // Average time to recover the whole message
	Overhead    float64       `json:"overhead"`       // Average blocks consumed divided by num_blocks
}

func main() {
	// Parse command-line flags
	messageSize := flag.Int("message-size", 65536, "Message size in bytes")
	blockSize := flag.Int("block-size", 1024, "Block size in bytes")
	loss := flag.Float64("loss", 0.1, "Fraction of blocks to drop before decoding (0 to <1)")
	iterations := flag.Int("iterations", 100, "Number of iterations per benchmark")
	outputFile := flag.String("output", "codec_benchmark.json", "Output file for benchmark results")
	flag.Parse()

	if *loss < 0 || *loss >= 1 {
		fmt.Fprintf(os.Stderr, "Error: loss %v must be in [0, 1)\n", *loss)
		os.Exit(1)
	}

	numBlocks := (*messageSize + *blockSize - 1) / *blockSize

	fmt.Printf("Benchmarking the rateless codec with:\n")
	fmt.Printf("  Message size: %d bytes\n", *messageSize)
	fmt.Printf("  Block size: %d bytes\n", *blockSize)
	fmt.Printf("  Source blocks: %d\n", numBlocks)
	fmt.Printf("  Loss: %.2f\n", *loss)
	fmt.Printf("  Iterations: %d\n", *iterations)
	fmt.Println()

	message := make([]byte, *messageSize)
	rand.Read(message)

	result := BenchmarkResult{
		MessageSize: *messageSize,
		BlockSize:   *blockSize,
		NumBlocks:   numBlocks,
		Loss:        *loss,
		Iterations:  *iterations,
	}

	// Benchmark encoder creation, which includes seed selection
	fmt.Print("Benchmarking NewEncoder... ")
	start := time.Now()
	for i := 0; i < *iterations; i++ {
		_, err := codec.NewEncoder(message, *blockSize)
		if err != nil {
			fmt.Fprintf(os.Stderr, "NewEncoder failed: %v\n", err)
			os.Exit(1)
		}
	}
	result.NewEncoder = time.Since(start) / time.Duration(*iterations)
	fmt.Printf("%v\n", result.NewEncoder)

	enc, err := codec.NewEncoder(message, *blockSize)
	if err != nil {
		fmt.Fprintf(os.Stderr, "NewEncoder failed: %v\n", err)
		os.Exit(1)
	}

	// Benchmark encoding past the source range, where every block is coded
	fmt.Print("Benchmarking Encode... ")
	row := make([]byte, *blockSize)
	start = time.Now()
	for i := 0; i < *iterations; i++ {
		if _, err := enc.Encode(uint64(numBlocks+i), row); err != nil {
			fmt.Fprintf(os.Stderr, "Encode failed: %v\n", err)
			os.Exit(1)
		}
	}
	result.Encode = time.Since(start) / time.Duration(*iterations)
	fmt.Printf("%v\n", result.Encode)

	// Benchmark full recovery under loss. Every loss-th block is dropped
	// on a rotating offset so each iteration sees a different subset.
	fmt.Print("Benchmarking Decode... ")
	dropEvery := 0
	if *loss > 0 {
		dropEvery = int(1 / *loss)
	}
	totalConsumed := 0
	start = time.Now()
	for i := 0; i < *iterations; i++ {
		dec, err := codec.NewDecoder(uint64(*messageSize), *blockSize)
		if err != nil {
			fmt.Fprintf(os.Stderr, "NewDecoder failed: %v\n", err)
			os.Exit(1)
		}
		consumed := 0
		for id := uint64(0); ; id++ {
			if dropEvery > 0 && (int(id)+i)%dropEvery == 0 {
				continue
			}
			if _, err := enc.Encode(id, row); err != nil {
				fmt.Fprintf(os.Stderr, "Encode failed: %v\n", err)
				os.Exit(1)
			}
			res, err := dec.Decode(id, row)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Decode failed at block %d: %v\n", id, err)
				os.Exit(1)
			}
			consumed++
			if res == codec.Success {
				break
			}
		}
		totalConsumed += consumed
		out := make([]byte, *messageSize)
		if _, err := dec.Recover(out); err != nil {
			fmt.Fprintf(os.Stderr, "Recover failed: %v\n", err)
			os.Exit(1)
		}
	}
	result.Decode = time.Since(start) / time.Duration(*iterations)
	result.Overhead = float64(totalConsumed) / float64(*iterations) / float64(numBlocks)
	fmt.Printf("%v (overhead %.3f)\n", result.Decode, result.Overhead)

	// Write result to file
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to marshal results: %v\n", err)
		os.Exit(1)
	}

	err = os.WriteFile(*outputFile, data, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write results to file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\nBenchmark results written to: %s\n", *outputFile)
}
