/*
Package templating renders text/template documents whose content is drawn
from Markov text models.

Templates are loaded from a directory: files ending in ".tmpl.txt" are full
templates that can be rendered by name, and files ending in ".part.txt" are
partials that full templates may include with the template action. Raw
template strings can also be rendered directly.

Models are resolved by name through a ModelLoader, typically a *store.Store,
and cached for the lifetime of the manager. The function map offers
sentence generation (markovSentence, markovShortSentence,
markovSentenceWithStart, markovParagraphs) alongside small helpers for
arithmetic and random choice.
*/
package templating
