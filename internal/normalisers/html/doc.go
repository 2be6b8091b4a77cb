// Package html provides a Normaliser for HTML files and fetched web pages.
// Text is extracted with the golang.org/x/net/html tokenizer; block level
// elements become paragraph breaks and script or style content is dropped.
package html
