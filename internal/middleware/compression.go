package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
)

// CompressionConfig holds configuration for the compression middleware
type CompressionConfig struct {
	// MinSize is the minimum response size in bytes before compression is applied
	MinSize int
	// GzipLevel is the gzip compression level (gzip.BestSpeed to gzip.BestCompression)
	GzipLevel int
	// BrotliLevel is the brotli quality (brotli.BestSpeed to brotli.BestCompression)
	BrotliLevel int
	// CompressibleTypes is a list of content types that should be compressed.
	// Images are already compressed and are never listed here.
	CompressibleTypes []string
}

// DefaultCompressionConfig returns sensible defaults for compression
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		MinSize:     1024,
		GzipLevel:   gzip.DefaultCompression,
		BrotliLevel: 5,
		CompressibleTypes: []string{
			"text/plain",
			"text/html",
			"application/json",
			"image/svg+xml",
		},
	}
}

// encoder is the common surface of gzip.Writer and brotli.Writer.
type encoder interface {
	io.WriteCloser
	Flush() error
	Reset(io.Writer)
}

// encoderPool hands out reusable encoders for one content coding.
type encoderPool struct {
	name string
	pool sync.Pool
}

func newEncoderPools(config CompressionConfig) map[string]*encoderPool {
	gz := &encoderPool{name: "gzip"}
	gz.pool.New = func() interface{} {
		w, err := gzip.NewWriterLevel(io.Discard, config.GzipLevel)
		if err != nil {
			w = gzip.NewWriter(io.Discard)
		}
		return w
	}

	br := &encoderPool{name: "br"}
	br.pool.New = func() interface{} {
		return brotli.NewWriterLevel(io.Discard, config.BrotliLevel)
	}

	return map[string]*encoderPool{"gzip": gz, "br": br}
}

func (p *encoderPool) get(w io.Writer) encoder {
	enc := p.pool.Get().(encoder)
	enc.Reset(w)
	return enc
}

func (p *encoderPool) put(enc encoder) {
	p.pool.Put(enc)
}

// negotiateEncoding picks the content coding for an Accept-Encoding header.
// Brotli is preferred over gzip; codings with q=0 are refused.
func negotiateEncoding(header string) string {
	var gzipOK, brOK bool
	for _, part := range strings.Split(header, ",") {
		token, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		token = strings.ToLower(strings.TrimSpace(token))
		if q := strings.ReplaceAll(params, " ", ""); q == "q=0" || q == "q=0.0" || q == "q=0.00" || q == "q=0.000" {
			continue
		}
		switch token {
		case "br":
			brOK = true
		case "gzip":
			gzipOK = true
		}
	}
	switch {
	case brOK:
		return "br"
	case gzipOK:
		return "gzip"
	default:
		return ""
	}
}

// compressResponseWriter buffers the first MinSize bytes to decide whether the
// response is worth compressing.
type compressResponseWriter struct {
	http.ResponseWriter
	pool           *encoderPool
	enc            encoder
	config         CompressionConfig
	buffer         []byte
	statusCode     int
	headerWritten  bool
	shouldCompress bool
}

func newCompressResponseWriter(w http.ResponseWriter, pool *encoderPool, config CompressionConfig) *compressResponseWriter {
	return &compressResponseWriter{
		ResponseWriter: w,
		pool:           pool,
		config:         config,
		statusCode:     http.StatusOK,
		buffer:         make([]byte, 0, config.MinSize+1),
	}
}

// WriteHeader captures the status code
func (c *compressResponseWriter) WriteHeader(statusCode int) {
	if c.headerWritten {
		return
	}
	c.statusCode = statusCode
}

// Write buffers data until we know if we should compress
func (c *compressResponseWriter) Write(data []byte) (int, error) {
	if c.headerWritten {
		if c.enc != nil {
			return c.enc.Write(data)
		}
		return c.ResponseWriter.Write(data)
	}

	c.buffer = append(c.buffer, data...)
	if len(c.buffer) > c.config.MinSize {
		if err := c.finalize(); err != nil {
			return 0, err
		}
	}
	return len(data), nil
}

func (c *compressResponseWriter) compressibleContentType() bool {
	contentType := c.Header().Get("Content-Type")
	if contentType == "" {
		return false
	}
	if c.Header().Get("Content-Encoding") != "" && c.Header().Get("Content-Encoding") != "identity" {
		return false
	}

	mediaType := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	for _, compressible := range c.config.CompressibleTypes {
		if mediaType == compressible {
			return true
		}
	}
	return false
}

// finalize decides whether to compress and writes the buffered data
func (c *compressResponseWriter) finalize() error {
	if c.headerWritten {
		return nil
	}
	c.headerWritten = true

	buffered := c.buffer
	c.buffer = nil

	c.shouldCompress = c.statusCode != http.StatusNoContent &&
		len(buffered) >= c.config.MinSize &&
		c.compressibleContentType()

	if !c.shouldCompress {
		c.ResponseWriter.WriteHeader(c.statusCode)
		_, err := c.ResponseWriter.Write(buffered)
		return err
	}

	c.Header().Del("Content-Length")
	c.Header().Set("Content-Encoding", c.pool.name)
	c.Header().Add("Vary", "Accept-Encoding")

	c.enc = c.pool.get(c.ResponseWriter)
	c.ResponseWriter.WriteHeader(c.statusCode)
	_, err := c.enc.Write(buffered)
	return err
}

// Close finalizes the response and returns the encoder to its pool
func (c *compressResponseWriter) Close() error {
	if err := c.finalize(); err != nil {
		return err
	}
	if c.enc == nil {
		return nil
	}
	err := c.enc.Close()
	c.pool.put(c.enc)
	c.enc = nil
	return err
}

// Flush implements http.Flusher
func (c *compressResponseWriter) Flush() {
	_ = c.finalize()
	if c.enc != nil {
		_ = c.enc.Flush()
	}
	if flusher, ok := c.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController
func (c *compressResponseWriter) Unwrap() http.ResponseWriter {
	return c.ResponseWriter
}

// Compression returns a middleware that compresses eligible responses with
// brotli or gzip, whichever the client prefers.
func Compression(config CompressionConfig) func(http.Handler) http.Handler {
	pools := newEncoderPools(config)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			coding := negotiateEncoding(r.Header.Get("Accept-Encoding"))
			if coding == "" || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}

			cw := newCompressResponseWriter(w, pools[coding], config)
			defer func() { _ = cw.Close() }()

			next.ServeHTTP(cw, r)
		})
	}
}
