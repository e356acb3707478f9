package logging

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

const (
	ansiReset  = "\033[0m"
	ansiBlack  = "\033[30m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
	ansiGray   = "\033[90m"
	ansiBgRed  = "\033[41m"
)

var bufPool = buffer.NewPool()

// consoleEncoder renders entries as
// "2006-01-02 15:04:05 ℹ [Name] message key=val" with error-level
// entries set off by a red badge.
type consoleEncoder struct {
	fieldCollector
	color bool
}

type consoleField struct {
	key string
	val string
}

func newConsoleEncoder(color bool) zapcore.Encoder {
	return &consoleEncoder{color: color}
}

func (e *consoleEncoder) Clone() zapcore.Encoder {
	clone := &consoleEncoder{color: e.color}
	clone.fields = make([]consoleField, len(e.fields))
	copy(clone.fields, e.fields)
	clone.prefix = e.prefix
	return clone
}

func (e *consoleEncoder) EncodeEntry(entry zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	buf := bufPool.Get()

	merged := make([]consoleField, 0, len(e.fields)+len(fields))
	merged = append(merged, e.fields...)
	if len(fields) > 0 {
		col := &fieldCollector{}
		for _, f := range fields {
			f.AddTo(col)
		}
		merged = append(merged, col.fields...)
	}

	badge := entry.Level >= zapcore.ErrorLevel
	if badge {
		buf.AppendByte('\n')
	}

	e.colored(buf, ansiGray, entry.Time.Format("2006-01-02 15:04:05"))
	buf.AppendByte(' ')

	if badge {
		label := " " + strings.ToUpper(entry.Level.String()) + " "
		if e.color {
			buf.AppendString(ansiBgRed)
			buf.AppendString(ansiBlack)
			buf.AppendString(label)
			buf.AppendString(ansiReset)
		} else {
			buf.AppendString(label)
		}
	} else {
		icon, color := levelIcon(entry.Level)
		e.colored(buf, color, icon)
	}
	buf.AppendByte(' ')

	if entry.LoggerName != "" {
		e.colored(buf, ansiYellow, "["+entry.LoggerName+"]")
		buf.AppendByte(' ')
	}

	buf.AppendString(entry.Message)

	for _, kv := range merged {
		buf.AppendByte(' ')
		buf.AppendString(kv.key)
		buf.AppendByte('=')
		if strings.ContainsAny(kv.val, " \"=\n\r\t") || kv.val == "" {
			buf.AppendString(strconv.Quote(kv.val))
		} else {
			buf.AppendString(kv.val)
		}
	}

	if badge {
		buf.AppendByte('\n')
	}
	buf.AppendByte('\n')
	return buf, nil
}

func (e *consoleEncoder) colored(buf *buffer.Buffer, color, s string) {
	if e.color && color != "" {
		buf.AppendString(color)
		buf.AppendString(s)
		buf.AppendString(ansiReset)
		return
	}
	buf.AppendString(s)
}

func levelIcon(level zapcore.Level) (icon, color string) {
	switch level {
	case zapcore.DebugLevel:
		return "⚙", ansiGray
	case zapcore.InfoLevel:
		return "ℹ", ansiCyan
	case zapcore.WarnLevel:
		return "⚠", ansiYellow
	default:
		return "✖", ansiRed
	}
}

// fieldCollector flattens zap fields into string key/value pairs.
type fieldCollector struct {
	fields []consoleField
	items  []string
	prefix string
}

func (c *fieldCollector) add(key, val string) {
	if c.prefix != "" {
		key = c.prefix + "." + key
	}
	c.fields = append(c.fields, consoleField{key: key, val: val})
}

func (c *fieldCollector) AddArray(key string, arr zapcore.ArrayMarshaler) error {
	inner := &fieldCollector{}
	if err := arr.MarshalLogArray(inner); err != nil {
		return err
	}
	c.add(key, "["+strings.Join(inner.items, ",")+"]")
	return nil
}

func (c *fieldCollector) AddObject(key string, obj zapcore.ObjectMarshaler) error {
	inner := &fieldCollector{prefix: key}
	if err := obj.MarshalLogObject(inner); err != nil {
		return err
	}
	c.fields = append(c.fields, inner.fields...)
	return nil
}

func (c *fieldCollector) AddBinary(key string, value []byte) { c.add(key, fmt.Sprintf("%x", value)) }
func (c *fieldCollector) AddByteString(key string, value []byte) { c.add(key, string(value)) }
func (c *fieldCollector) AddBool(key string, value bool) { c.add(key, strconv.FormatBool(value)) }
func (c *fieldCollector) AddComplex128(key string, value complex128) { c.add(key, fmt.Sprint(value)) }
func (c *fieldCollector) AddComplex64(key string, value complex64) { c.add(key, fmt.Sprint(value)) }
func (c *fieldCollector) AddDuration(key string, value time.Duration) { c.add(key, value.String()) }
func (c *fieldCollector) AddFloat64(key string, value float64) {
	c.add(key, strconv.FormatFloat(value, 'f', -1, 64))
}
func (c *fieldCollector) AddFloat32(key string, value float32) {
	c.add(key, strconv.FormatFloat(float64(value), 'f', -1, 32))
}
func (c *fieldCollector) AddInt(key string, value int) { c.add(key, strconv.Itoa(value)) }
func (c *fieldCollector) AddInt64(key string, value int64) { c.add(key, strconv.FormatInt(value, 10)) }
func (c *fieldCollector) AddInt32(key string, value int32) { c.add(key, strconv.FormatInt(int64(value), 10)) }
func (c *fieldCollector) AddInt16(key string, value int16) { c.add(key, strconv.FormatInt(int64(value), 10)) }
func (c *fieldCollector) AddInt8(key string, value int8) { c.add(key, strconv.FormatInt(int64(value), 10)) }
func (c *fieldCollector) AddString(key, value string) { c.add(key, value) }
func (c *fieldCollector) AddTime(key string, value time.Time) {
	c.add(key, value.Format(time.RFC3339))
}
func (c *fieldCollector) AddUint(key string, value uint) { c.add(key, strconv.FormatUint(uint64(value), 10)) }
func (c *fieldCollector) AddUint64(key string, value uint64) { c.add(key, strconv.FormatUint(value, 10)) }
func (c *fieldCollector) AddUint32(key string, value uint32) { c.add(key, strconv.FormatUint(uint64(value), 10)) }
func (c *fieldCollector) AddUint16(key string, value uint16) { c.add(key, strconv.FormatUint(uint64(value), 10)) }
func (c *fieldCollector) AddUint8(key string, value uint8) { c.add(key, strconv.FormatUint(uint64(value), 10)) }
func (c *fieldCollector) AddUintptr(key string, value uintptr) {
	c.add(key, strconv.FormatUint(uint64(value), 10))
}
func (c *fieldCollector) AddReflected(key string, value interface{}) error {
	c.add(key, fmt.Sprint(value))
	return nil
}
func (c *fieldCollector) OpenNamespace(key string) {
	if c.prefix == "" {
		c.prefix = key
	} else {
		c.prefix += "." + key
	}
}

// ArrayEncoder surface, used when fields carry arrays.
func (c *fieldCollector) AppendBool(v bool) { c.items = append(c.items, strconv.FormatBool(v)) }
func (c *fieldCollector) AppendByteString(v []byte) { c.items = append(c.items, string(v)) }
func (c *fieldCollector) AppendComplex128(v complex128) { c.items = append(c.items, fmt.Sprint(v)) }
func (c *fieldCollector) AppendComplex64(v complex64) { c.items = append(c.items, fmt.Sprint(v)) }
func (c *fieldCollector) AppendFloat64(v float64) { c.items = append(c.items, fmt.Sprint(v)) }
func (c *fieldCollector) AppendFloat32(v float32) { c.items = append(c.items, fmt.Sprint(v)) }
func (c *fieldCollector) AppendInt(v int) { c.items = append(c.items, strconv.Itoa(v)) }
func (c *fieldCollector) AppendInt64(v int64) { c.items = append(c.items, strconv.FormatInt(v, 10)) }
func (c *fieldCollector) AppendInt32(v int32) { c.items = append(c.items, fmt.Sprint(v)) }
func (c *fieldCollector) AppendInt16(v int16) { c.items = append(c.items, fmt.Sprint(v)) }
func (c *fieldCollector) AppendInt8(v int8) { c.items = append(c.items, fmt.Sprint(v)) }
func (c *fieldCollector) AppendString(v string) { c.items = append(c.items, v) }
func (c *fieldCollector) AppendUint(v uint) { c.items = append(c.items, fmt.Sprint(v)) }
func (c *fieldCollector) AppendUint64(v uint64) { c.items = append(c.items, strconv.FormatUint(v, 10)) }
func (c *fieldCollector) AppendUint32(v uint32) { c.items = append(c.items, fmt.Sprint(v)) }
func (c *fieldCollector) AppendUint16(v uint16) { c.items = append(c.items, fmt.Sprint(v)) }
func (c *fieldCollector) AppendUint8(v uint8) { c.items = append(c.items, fmt.Sprint(v)) }
func (c *fieldCollector) AppendUintptr(v uintptr) { c.items = append(c.items, fmt.Sprint(v)) }
func (c *fieldCollector) AppendDuration(v time.Duration) { c.items = append(c.items, v.String()) }
func (c *fieldCollector) AppendTime(v time.Time) { c.items = append(c.items, v.Format(time.RFC3339)) }
func (c *fieldCollector) AppendArray(arr zapcore.ArrayMarshaler) error {
	inner := &fieldCollector{}
	if err := arr.MarshalLogArray(inner); err != nil {
		return err
	}
	c.items = append(c.items, "["+strings.Join(inner.items, ",")+"]")
	return nil
}
func (c *fieldCollector) AppendObject(obj zapcore.ObjectMarshaler) error {
	inner := &fieldCollector{}
	if err := obj.MarshalLogObject(inner); err != nil {
		return err
	}
	parts := make([]string, 0, len(inner.fields))
	for _, f := range inner.fields {
		parts = append(parts, f.key+"="+f.val)
	}
	c.items = append(c.items, "{"+strings.Join(parts, " ")+"}")
	return nil
}
func (c *fieldCollector) AppendReflected(v interface{}) error {
	c.items = append(c.items, fmt.Sprint(v))
	return nil
}
