/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/tomoncle/gear/utils"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

var log = utils.NewLogger("HTTP")

// RealIP rewrites RemoteAddr from X-Forwarded-For or X-Real-IP when the
// direct peer is a trusted proxy, so rate limiting and access logs see the
// end client address. Without trusted proxies the headers are ignored,
// which keeps them unspoofable.
func RealIP(trustedProxies ...string) func(http.Handler) http.Handler {
	trusted := parseTrustedProxies(trustedProxies)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ip := forwardedIP(r, trusted); ip != "" {
				r.RemoteAddr = ip
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger logs one line per request with client_ip, method, path,
// status_code, and latency_time fields. A nil logger falls back to the
// package logger.
func RequestLogger(logger *utils.Logger, trustedProxies ...string) func(http.Handler) http.Handler {
	if logger == nil {
		logger = log
	}
	trusted := parseTrustedProxies(trustedProxies)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			clientIP := forwardedIP(r, trusted)
			if clientIP == "" {
				clientIP = remoteHost(r)
			}
			entry := logger.WithFields(logrus.Fields{
				"client_ip":    clientIP,
				"method":       r.Method,
				"path":         r.URL.Path,
				"status_code":  status,
				"latency_time": time.Since(start).String(),
			})
			switch {
			case status >= http.StatusInternalServerError:
				entry.Error(http.StatusText(status))
			case status >= http.StatusBadRequest:
				entry.Warn(http.StatusText(status))
			default:
				entry.Info(http.StatusText(status))
			}
		})
	}
}

// ClientIP returns the caller address for a request, honoring forwarded
// headers only when the direct peer matches one of the trusted proxies.
func ClientIP(r *http.Request, trustedProxies ...string) string {
	if ip := forwardedIP(r, parseTrustedProxies(trustedProxies)); ip != "" {
		return ip
	}
	return remoteHost(r)
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// forwardedIP returns the forwarded client address, or "" when the peer is
// not a trusted proxy or no forwarded header is set.
func forwardedIP(r *http.Request, trusted []*net.IPNet) string {
	if !ipTrusted(remoteHost(r), trusted) {
		return ""
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
			return ip
		}
	}
	return strings.TrimSpace(r.Header.Get("X-Real-IP"))
}

// parseTrustedProxies accepts CIDRs and bare addresses; bare addresses get
// a host mask.
func parseTrustedProxies(entries []string) []*net.IPNet {
	var networks []*net.IPNet
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if !strings.Contains(entry, "/") {
			if ip := net.ParseIP(entry); ip != nil {
				bits := 32
				if ip.To4() == nil {
					bits = 128
				}
				entry = fmt.Sprintf("%s/%d", entry, bits)
			}
		}
		if _, network, err := net.ParseCIDR(entry); err == nil {
			networks = append(networks, network)
		}
	}
	return networks
}

func ipTrusted(host string, trusted []*net.IPNet) bool {
	if len(trusted) == 0 {
		return false
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	for _, network := range trusted {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}
