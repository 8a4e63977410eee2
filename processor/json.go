package processor

import (
	"errors"
	"fmt"

	"github.com/thisisjab/rulezilla/entity"
	"github.com/valyala/fastjson"
)

type JsonRecordProcessorConfig struct {
	Name string `yaml:"-"`

	// DataField, when set, names a top-level object field whose content
	// becomes the record data instead of the whole document.
	DataField string `yaml:"data_field"`
}

// JsonRecordProcessor parses raw JSON records into record data. Numbers are
// kept as json.Number so no precision is lost before rules compare them.
type JsonRecordProcessor struct {
	cfg    JsonRecordProcessorConfig
	parser fastjson.ParserPool
}

// NewJsonRecordProcessor creates a new instance of JsonRecordProcessor.
func NewJsonRecordProcessor(cfg JsonRecordProcessorConfig) (*JsonRecordProcessor, error) {
	return &JsonRecordProcessor{cfg: cfg}, nil
}

func (p *JsonRecordProcessor) Name() string {
	return p.cfg.Name
}

// Process parses record.RawData, which must be a JSON object, into record.Data.
func (p *JsonRecordProcessor) Process(record entity.Record) (entity.Record, error) {
	parser := p.parser.Get()
	defer p.parser.Put(parser)

	v, err := parser.ParseBytes(record.RawData)
	if err != nil {
		return record, fmt.Errorf("cannot parse record: %w", err)
	}

	if p.cfg.DataField != "" {
		v = v.Get(p.cfg.DataField)
		if v == nil {
			return record, fmt.Errorf("data field `%s` is missing", p.cfg.DataField)
		}
	}

	obj, err := v.Object()
	if err != nil {
		return record, errors.New("record must be a JSON object")
	}

	record.Data = fastjsonObjectToMap(obj)

	return record, nil
}
