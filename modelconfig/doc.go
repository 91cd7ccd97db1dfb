// Package modelconfig reads the configuration artifact that ships with a
// model directory.
//
// configuration.json names the pipeline variant, the model type and the
// processors a model expects:
//
//	{
//	  "task": "text-classification",
//	  "pipeline": {"type": "text-classification"},
//	  "model": {"type": "bert", "label2id": {"neg": 0, "pos": 1}},
//	  "preprocessor": {"type": "text-normalize", "lowercase": true}
//	}
//
// A directory without the file yields an empty Configuration, which is
// valid for units that carry no artifacts.
package modelconfig
