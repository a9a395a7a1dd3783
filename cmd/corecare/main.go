// corecare 运维命令行：迁移、周汇总回填与工资报表导出
package main

func main() {
	Execute()
}
