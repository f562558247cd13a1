package auth

import (
	"fmt"
	"io"
	"strings"
)

// WriteImportGuide explains how to copy a clearance token out of a desktop browser
// for hosts where headless Chrome cannot pass the challenge.
func WriteImportGuide(w io.Writer, entryURL, clearance string) {
	rule := strings.Repeat("=", 72)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "MANUAL CLEARANCE IMPORT")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "1. Open %s in a desktop browser and wait until the page loads.\n", entryURL)
	fmt.Fprintln(w, "2. Open developer tools (F12) and go to Application > Cookies.")
	fmt.Fprintf(w, "3. Copy the value of the %q cookie.\n", clearance)
	fmt.Fprintln(w, "4. Paste it at the prompt below. Input is not echoed.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "The token is bound to the browser's user agent and IP address.")
	fmt.Fprintln(w, "Set remote.user_agent to the same value your browser reports.")
	fmt.Fprintln(w, rule)
}

// ImportedSet builds the credential set for a manually copied clearance token
func ImportedSet(clearance, token string) CredentialSet {
	if clearance == "" {
		clearance = DefaultClearanceCookie
	}
	return CredentialSet{
		clearance:         strings.TrimSpace(token),
		cookieConsentName: "yes",
	}
}
