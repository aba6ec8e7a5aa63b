package rlog

import "fmt"

// The structured events named in spec.md §6. Each is a typed method so
// call sites can't drift from the logger contract by hand-formatting
// a similar-but-not-quite string.

func (l *Logger) DatabaseCreated(name string) {
	l.Info(fmt.Sprintf("database_created db=%s", name))
}

func (l *Logger) ViewCreated(name string) {
	l.Info(fmt.Sprintf("view_created view=%s", name))
}

func (l *Logger) DynamicRecreated(table string) {
	l.Info(fmt.Sprintf("dynamic_recreated table=%s", table))
}

func (l *Logger) BatchDynamic(count int, seconds float64, table string) {
	l.Info(fmt.Sprintf("batch_dynamic table=%s count=%d seconds=%.3f", table, count, seconds))
}

func (l *Logger) BatchInclude(batchNb, count int, table string, watermark any, totalS, readS, writeS float64) {
	l.Info(fmt.Sprintf(
		"batch_include table=%s batch_nb=%d count=%d watermark=%v total_s=%.3f read_s=%.3f write_s=%.3f",
		table, batchNb, count, watermark, totalS, readS, writeS))
}

func (l *Logger) ReflectingSource(schema, url string) {
	l.Infof("reflecting_source schema=%s url=%s", schema, url)
}

func (l *Logger) ReflectingTarget(schema, url string) {
	l.Infof("reflecting_target schema=%s url=%s", schema, url)
}

func (l *Logger) BootstrappedWith(stmt string) {
	l.Info(fmt.Sprintf("bootstrapped_with stmt=%q", stmt))
}
