/*
Package markov builds word-level Markov chain models from plain text and
generates new sentences from them.

A Text splits its input into sentences, optionally drops sentences that look
broken out of context, and trains a Chain on the words of the rest. Generated
sentences can be checked against the retained source so that the model does
not simply echo it back. Models can be combined with weights, exported to
JSON and imported again; package store persists them in SQLite.

Sampling goes through a RandomSource, so a seeded source makes generation
reproducible.
*/
package markov
