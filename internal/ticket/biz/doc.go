// Package biz 实现工单服务的核心逻辑: 标识解析, 变更描述, 向量投影,
// 文档库与向量索引之间的一致性协调, 以及语义搜索融合.
//
// 文档库是权威数据. 向量索引只作为搜索加速, 允许滞后; 索引写入失败
// 不回滚文档库, 而是记录一致性事件, 由 Reconcile 异步补偿.
package biz
