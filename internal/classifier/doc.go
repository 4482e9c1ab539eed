// Package classifier assigns each parsed document a category from the fixed
// taxonomy. A keyword pattern cascade handles the common document types
// without a model call; everything else falls through to the model. The
// classifier never fails a document: model errors degrade to the Other
// category with an explanatory summary.
package classifier
